package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// Registry holds the wallets configured for this process. Lookups fold case,
// so "Gems" and "gems" address the same wallet.
type Registry struct {
	wallets map[string]*Wallet
	names   []string
}

// NewRegistry builds one Wallet per distinct name. Blank names are skipped
// and the first spelling of a name wins.
func NewRegistry(db *gorm.DB, names []string) *Registry {
	r := &Registry{wallets: make(map[string]*Wallet, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := foldName(n)
		if _, ok := r.wallets[key]; ok {
			continue
		}
		r.wallets[key] = NewWallet(db, n)
		r.names = append(r.names, n)
	}
	return r
}

// Get returns the wallet called name or ErrWalletNotFound.
func (r *Registry) Get(ctx context.Context, name string) (*Wallet, error) {
	if w, ok := r.wallets[foldName(strings.TrimSpace(name))]; ok {
		return w, nil
	}
	log.Ctx(ctx).Error().Str("wallet", name).Strs("known", r.names).Msg("wallet not found")
	return nil, ErrWalletNotFound
}

// Names lists the configured wallet names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// foldName builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func foldName(s string) string {
	return cases.Fold().String(s)
}
