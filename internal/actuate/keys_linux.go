//go:build linux

package actuate

import (
	"fmt"
	"sync"

	"github.com/micmonay/keybd_event"
)

// KeyPresser sends synthetic key events through uinput.
type KeyPresser struct {
	once sync.Once
	kb   keybd_event.KeyBonding
	err  error
}

var _ Keys = (*KeyPresser)(nil)

// NewKeyPresser creates a lazily initialized KeyPresser. The uinput device
// is opened on first use, which requires access to /dev/uinput.
func NewKeyPresser() *KeyPresser {
	return &KeyPresser{}
}

func (k *KeyPresser) init() error {
	k.once.Do(func() {
		k.kb, k.err = keybd_event.NewKeyBonding()
	})
	return k.err
}

// PressEnter taps the Enter key.
func (k *KeyPresser) PressEnter() error {
	if err := k.init(); err != nil {
		return fmt.Errorf("actuate: key device: %w", err)
	}
	k.kb.SetKeys(keybd_event.VK_ENTER)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("actuate: press enter: %w", err)
	}
	return nil
}
