//go:build usbhsdebug

package lpc55hs

const debugInvariants = true
