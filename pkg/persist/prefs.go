package persist

import (
	"fmt"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const prefsBucket = "prefs"

// Key prefixes. Every preference lives under one of these.
const (
	KeyOnboarding = "onboarding"
	KeyDisclaimer = "disclaimer"
	PrefixBanner  = "banner:"
	PrefixWallet  = "wallet:"
)

// Prefs stores small local flags: onboarding and disclaimer acceptance,
// dismissed banners and previously connected wallet labels
type Prefs struct {
	db *bolt.DB
}

// NewPrefs creates the prefs bucket if needed
func NewPrefs(db *bolt.DB) (*Prefs, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(prefsBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prefs bucket: %w", err)
	}
	return &Prefs{db: db}, nil
}

func (p *Prefs) put(key, value string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(prefsBucket)).Put([]byte(key), []byte(value))
	})
}

func (p *Prefs) get(key string) (string, bool) {
	var value []byte
	_ = p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(prefsBucket)).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return string(value), value != nil
}

func (p *Prefs) flag(key string) bool {
	v, _ := p.get(key)
	return v == "true"
}

// Onboarded reports whether the onboarding was completed
func (p *Prefs) Onboarded() bool {
	return p.flag(KeyOnboarding)
}

// SetOnboarded records onboarding completion
func (p *Prefs) SetOnboarded(done bool) error {
	return p.put(KeyOnboarding, fmt.Sprint(done))
}

// DisclaimerAccepted reports whether the risk disclaimer was accepted
func (p *Prefs) DisclaimerAccepted() bool {
	return p.flag(KeyDisclaimer)
}

// AcceptDisclaimer records acceptance of the disclaimer
func (p *Prefs) AcceptDisclaimer() error {
	return p.put(KeyDisclaimer, "true")
}

// BannerDismissed reports whether a banner was dismissed
func (p *Prefs) BannerDismissed(id string) bool {
	return p.flag(PrefixBanner + id)
}

// DismissBanner hides a banner for good
func (p *Prefs) DismissBanner(id string) error {
	return p.put(PrefixBanner+id, "true")
}

// RememberWallet stores the label of a wallet that was used
func (p *Prefs) RememberWallet(label string) error {
	if label == "" {
		return fmt.Errorf("wallet label is empty")
	}
	return p.put(PrefixWallet+label, "true")
}

// Wallets lists remembered wallet labels in order
func (p *Prefs) Wallets() []string {
	var labels []string
	_ = p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(prefsBucket)).Cursor()
		prefix := []byte(PrefixWallet)
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), PrefixWallet); k, _ = c.Next() {
			labels = append(labels, strings.TrimPrefix(string(k), PrefixWallet))
		}
		return nil
	})
	sort.Strings(labels)
	return labels
}

// All returns every stored preference
func (p *Prefs) All() map[string]string {
	out := make(map[string]string)
	_ = p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(prefsBucket)).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out
}

// Reset removes every preference
func (p *Prefs) Reset() error {
	return p.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(prefsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(prefsBucket))
		return err
	})
}
