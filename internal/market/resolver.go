// Package market provides instrument resolution and concurrent quote
// retrieval against an external market-data collaborator.
package market

import (
	"github.com/sirupsen/logrus"

	"gap-monitor/internal/domain"
)

// Contract is one venue-listed instrument as published by the
// instrument source.
type Contract struct {
	Code      string
	Name      string
	Venue     domain.Venue
	Reference float64 // previous settlement price; may be absent
}

// Directory is the instrument source collaborator: lookup by
// venue-qualified symbol such as "TSE2330". Absence is not an error.
type Directory interface {
	Lookup(symbol string) (Contract, bool)
}

// Resolution is the structured result of resolving a code list. The
// call never fails; it degrades to a smaller resolved set.
type Resolution struct {
	Handles   []domain.InstrumentHandle
	Info      map[string]domain.InstrumentInfo
	Requested int
	Missing   []string // codes found at neither venue
}

// Resolved returns the number of codes that resolved to a handle.
func (r Resolution) Resolved() int {
	return len(r.Handles)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Derivatives is an optional side table marking codes with a
	// listed single-stock future. Absent table defaults every code to
	// false.
	Derivatives map[string]bool

	Logger *logrus.Entry
}

// Resolver maps bare symbol codes to venue-qualified instrument
// handles, trying the primary venue first and the secondary as
// fallback.
type Resolver struct {
	dir         Directory
	derivatives map[string]bool
	log         *logrus.Entry
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory, opts ResolverOptions) *Resolver {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Resolver{
		dir:         dir,
		derivatives: opts.Derivatives,
		log:         opts.Logger,
	}
}

// Resolve looks up every code at TSE then OTC and builds the session's
// immutable handle list and info map. Codes missing at both venues are
// dropped silently and reported only through the count delta.
func (r *Resolver) Resolve(codes []string) Resolution {
	res := Resolution{
		Info:      make(map[string]domain.InstrumentInfo, len(codes)),
		Requested: len(codes),
	}

	for _, code := range codes {
		contract, ok := r.lookup(code)
		if !ok {
			res.Missing = append(res.Missing, code)
			continue
		}

		res.Handles = append(res.Handles, domain.InstrumentHandle{
			Code:   code,
			Venue:  contract.Venue,
			Symbol: contract.Venue.Symbol(code),
		})
		res.Info[code] = domain.InstrumentInfo{
			Code:          code,
			DisplayName:   contract.Name,
			Reference:     contract.Reference,
			HasDerivative: r.derivatives[code],
		}
	}

	if len(res.Missing) > 0 {
		r.log.WithFields(logrus.Fields{
			"requested": res.Requested,
			"resolved":  res.Resolved(),
		}).Warnf("%d codes found at neither venue", len(res.Missing))
	}

	return res
}

// lookup tries the primary venue namespace, then the secondary.
func (r *Resolver) lookup(code string) (Contract, bool) {
	if c, ok := r.dir.Lookup(domain.VenueTSE.Symbol(code)); ok {
		return c, true
	}
	return r.dir.Lookup(domain.VenueOTC.Symbol(code))
}

// StaticDirectory is an in-memory Directory keyed by venue-qualified
// symbol, typically built from one contract download at session start.
type StaticDirectory struct {
	contracts map[string]Contract
}

// NewStaticDirectory indexes the given contracts by symbol.
func NewStaticDirectory(contracts []Contract) *StaticDirectory {
	d := &StaticDirectory{contracts: make(map[string]Contract, len(contracts))}
	for _, c := range contracts {
		d.contracts[c.Venue.Symbol(c.Code)] = c
	}
	return d
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(symbol string) (Contract, bool) {
	c, ok := d.contracts[symbol]
	return c, ok
}
