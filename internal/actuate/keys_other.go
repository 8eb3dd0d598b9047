//go:build !linux

package actuate

import "errors"

// KeyPresser is unavailable off Linux; every press fails.
type KeyPresser struct{}

var _ Keys = (*KeyPresser)(nil)

func NewKeyPresser() *KeyPresser { return &KeyPresser{} }

func (k *KeyPresser) PressEnter() error {
	return errors.New("actuate: key presses are only supported on linux")
}
