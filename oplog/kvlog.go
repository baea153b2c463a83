/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package oplog

import (
	"github.com/crewjam/rfc5424"
)

// KVLogger binds a fixed set of structured-data fields (e.g. component
// name) to every record it writes, so a caller doesn't have to repeat them
// on each call.
type KVLogger struct {
	*Logger
	sds []rfc5424.SDParam
}

// NewLoggerWithKV wraps l, attaching sds to every record written through
// the returned KVLogger.
func NewLoggerWithKV(l *Logger, sds ...rfc5424.SDParam) *KVLogger {
	return &KVLogger{Logger: l, sds: sds}
}

// Error writes an ERROR record with the bound fields plus any call-specific
// ones in sds.
func (kvl *KVLogger) Error(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(ERROR, msg, append(append([]rfc5424.SDParam{}, kvl.sds...), sds...)...)
}
