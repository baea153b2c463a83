/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package oplog

import (
	"fmt"
	"io"
	"runtime"

	"github.com/crewjam/rfc5424"
	"github.com/shirou/gopsutil/v4/host"
)

// KV builds one RFC5424 structured-data field for a log call.
func KV(name string, value any) rfc5424.SDParam {
	v, ok := value.(string)
	if !ok {
		v = fmt.Sprintf("%v", value)
	}
	return rfc5424.SDParam{Name: name, Value: v}
}

// KVErr is KV("error", err), the common case of attaching a failure to a
// structured log record.
func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}

// PrintOSInfo writes a one-line OS/platform/kernel banner to wtr, called at
// daemon startup so operators can see what the process is running on.
func PrintOSInfo(wtr io.Writer) {
	info, err := host.Info()
	if err != nil {
		fmt.Fprintf(wtr, "OS:\t\tERROR %v\n", err)
		return
	}
	fmt.Fprintf(wtr, "OS:\t\t%s %s [%s] (%s %s)\n",
		runtime.GOOS, runtime.GOARCH, info.KernelVersion, info.Platform, info.PlatformVersion)
}
