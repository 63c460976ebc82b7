// Package wire encodes and decodes the on-wire representations shared by every
// ECCONet node: the 29-bit CAN identifier bit layout and the CRC16 used for
// message integrity and file checksums. Nothing in this package performs I/O;
// it operates on plain byte slices and integers so it can be exercised without
// a CAN driver.
package wire
