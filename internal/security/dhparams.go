package security

import "math/big"

// dh2048P and dh2048G are the fixed 2048-bit MODP group used by the SSH2
// policy set, reproduced byte-for-byte from security-manager.cc's
// dh2048_p/dh2048_g arrays rather than re-derived, matching the idiom this
// repository uses elsewhere for fixed binary constants.
var dh2048P = []byte{
	0xC4, 0x25, 0x37, 0x63, 0x56, 0x46, 0xDA, 0x97, 0x3A, 0x51, 0x98, 0xA1,
	0xD1, 0xA1, 0xD0, 0xA0, 0x78, 0x58, 0x64, 0x31, 0x74, 0x6D, 0x1D, 0x85,
	0x25, 0x38, 0x3E, 0x0C, 0x88, 0x1F, 0xFF, 0x07, 0x5E, 0x73, 0xFF, 0x16,
	0x52, 0x22, 0x45, 0xC0, 0x1B, 0xBA, 0xC9, 0x8E, 0x84, 0x92, 0x90, 0x42,
	0x32, 0x88, 0xF7, 0x94, 0x0B, 0xB2, 0x03, 0xF1, 0x15, 0xA1, 0xD0, 0x31,
	0x49, 0x44, 0xFD, 0xA0, 0x46, 0x11, 0x06, 0x38, 0x6F, 0x06, 0x2F, 0xBB,
	0xA9, 0x0B, 0xB1, 0xC8, 0xB5, 0x8F, 0xFE, 0x7A, 0x7F, 0x4E, 0x94, 0x19,
	0xCE, 0x7A, 0x1A, 0xA9, 0xB5, 0xE8, 0x9F, 0x05, 0x19, 0x2D, 0x39, 0x26,
	0xF5, 0xC6, 0x3A, 0x80, 0xC0, 0xCA, 0xE3, 0x66, 0x22, 0x12, 0x1C, 0x46,
	0xAC, 0x46, 0x6F, 0x2C, 0x36, 0x29, 0x1C, 0x6B, 0xFD, 0x35, 0xFA, 0x90,
	0x87, 0x75, 0x90, 0xA8, 0x32, 0x1B, 0xFE, 0x2F, 0x32, 0x9D, 0x62, 0x91,
	0x3A, 0x1A, 0x8B, 0xEC, 0xDB, 0xB5, 0x26, 0x74, 0x7E, 0xE3, 0x7A, 0xA6,
	0x5C, 0xBA, 0xEA, 0xCF, 0x68, 0x95, 0x04, 0x96, 0xB9, 0x0F, 0x68, 0x7D,
	0x3F, 0xC6, 0x2E, 0xA1, 0xBA, 0x10, 0x8E, 0x83, 0x3C, 0x52, 0x50, 0x30,
	0xDC, 0x0A, 0x5D, 0x95, 0x67, 0x27, 0x64, 0x00, 0x9A, 0x18, 0x13, 0x86,
	0xC9, 0xC9, 0xAD, 0x4B, 0x4E, 0x77, 0x9F, 0x92, 0xFD, 0x0E, 0x41, 0xDB,
	0x15, 0xEE, 0x00, 0x6F, 0xA7, 0xDF, 0x89, 0xEC, 0xD4, 0x33, 0x14, 0xA5,
	0x57, 0xA1, 0x99, 0x0F, 0x59, 0x4C, 0x15, 0x8B, 0x17, 0x8D, 0xC1, 0x1A,
	0x2E, 0x70, 0xD0, 0x8E, 0x0B, 0x07, 0x57, 0xB8, 0xB1, 0x87, 0xB9, 0x03,
	0x97, 0x70, 0x69, 0x95, 0x0D, 0x8C, 0x2E, 0x4E, 0xC1, 0x2E, 0x47, 0x1F,
	0x59, 0xDB, 0xB1, 0x82, 0x37, 0x06, 0xA9, 0x99, 0xC1, 0x77, 0x39, 0x1C,
	0x1A, 0xC0, 0xA7, 0xB3,
}

var dh2048G = []byte{0x02}

// edhGroup returns the (P, G) pair as big.Int, checked each time
// NewSSH2PolicySet calls it. A nil return means the fixed constants failed to parse, which would
// indicate corruption of the constant block above; the SSH2 policy set
// refuses to operate in that case.
func edhGroup() (p, g *big.Int) {
	p = new(big.Int).SetBytes(dh2048P)
	g = new(big.Int).SetBytes(dh2048G)
	if p.Sign() <= 0 || g.Sign() <= 0 {
		return nil, nil
	}
	return p, g
}
