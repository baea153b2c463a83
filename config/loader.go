/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads tacd's gcfg-based configuration file into the realm
// and log-destination trees spec.md's components I and E describe.
//
// Grounded on gravwell/ingest/config/loader.go's file-read path
// (LoadConfigFile/LoadConfigBytes), with the VariableConfig/gcfg.Idxer
// reflection overlay dropped: that machinery exists so a single ingester
// config can carry arbitrary named target lists onto a flat struct, a
// problem tacd doesn't have (its named subsections already map onto
// gcfg's own map[string]*struct support). See DESIGN.md.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 4 * 1024 * 1024 // matches the teacher's "massive config file" ceiling

var (
	ErrConfigFileTooLarge = errors.New("config: file is too large")
	ErrFailedFileRead     = errors.New("config: failed to read entire file")
)

// LoadFile reads path and parses it into a fresh File.
func LoadFile(path string) (*File, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return nil, err
	}
	if n != fi.Size() {
		return nil, ErrFailedFileRead
	}
	return LoadBytes(bb.Bytes())
}

// LoadBytes parses the contents of b into a fresh File.
func LoadBytes(b []byte) (*File, error) {
	if int64(len(b)) > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}
	var f File
	if err := gcfg.ReadStringInto(&f, string(b)); err != nil {
		return nil, err
	}
	return &f, nil
}
