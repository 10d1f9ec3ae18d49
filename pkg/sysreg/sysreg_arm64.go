package sysreg

import "github.com/fkcurrie/regio/pkg/reg"

func readMIDR() uint64
func readCTR() uint64
func readDCZID() uint64
func readCNTFRQ() uint64
func readCNTVCT() uint64

var readers = map[reg.SysRegID]func() uint64{
	MIDR_EL1:   readMIDR,
	CTR_EL0:    readCTR,
	DCZID_EL0:  readDCZID,
	CNTFRQ_EL0: readCNTFRQ,
	CNTVCT_EL0: readCNTVCT,
}
