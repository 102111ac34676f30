package qoi

import "image/color"

// cache holds recently seen pixels at slot hash(px).
//
// Slots start out as the zero pixel (0,0,0,0), which is indistinguishable
// from a stored transparent black pixel. A transparent black pixel may
// therefore hit a slot that was never written. Encoder and decoder agree on
// this, and streams depend on it.
type cache [qoiCacheSize]color.NRGBA

func slotFor(px color.NRGBA) uint8 {
	return hash(px)
}

func (c *cache) lookup(px color.NRGBA) (uint8, bool) {
	slot := slotFor(px)
	return slot, c[slot] == px
}

func (c *cache) store(px color.NRGBA) {
	c[slotFor(px)] = px
}

func (c *cache) at(slot uint8) color.NRGBA {
	return c[slot&mask6]
}
