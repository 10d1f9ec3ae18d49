//go:build !arm64

package sysreg

import "github.com/fkcurrie/regio/pkg/reg"

var readers = map[reg.SysRegID]func() uint64{}
