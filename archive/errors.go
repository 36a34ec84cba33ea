package archive

import (
	"errors"

	"github.com/blockchainsuperheroes/agentseed/model"
)

var (
	ErrNotFound    = errors.New("archive: not found")
	ErrInvalidCID  = errors.New("archive: invalid cid")
	ErrCIDMismatch = errors.New("archive: cid mismatch")
	ErrImmutable   = errors.New("archive: immutable object mismatch")
	ErrBadLocator  = errors.New("archive: locator is not ipfs://<cid>")
	ErrFingerprint = errors.New("archive: memory fingerprint mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Rule ids for archive errors that leave the process.
const (
	RuleNotFound    = "ARCHIVE-LOOKUP-001"
	RuleInvalidCID  = "ARCHIVE-INPUT-001"
	RuleBadLocator  = "ARCHIVE-INPUT-002"
	RuleCIDMismatch = "ARCHIVE-DATA-001"
	RuleImmutable   = "ARCHIVE-DATA-002"
	RuleFingerprint = "ARCHIVE-DATA-003"
)

var ruleTable = []struct {
	sentinel error
	kind     model.Kind
	rule     string
}{
	{ErrNotFound, model.KindNotFound, RuleNotFound},
	{ErrInvalidCID, model.KindInvalidInput, RuleInvalidCID},
	{ErrBadLocator, model.KindInvalidInput, RuleBadLocator},
	{ErrCIDMismatch, model.KindInternal, RuleCIDMismatch},
	{ErrImmutable, model.KindInternal, RuleImmutable},
	{ErrFingerprint, model.KindInvalidInput, RuleFingerprint},
}

// Structured wraps an archive error in a model.Error carrying its rule id.
// Errors without a sentinel become KindInternal.
func Structured(err error) error {
	if err == nil {
		return nil
	}
	for _, r := range ruleTable {
		if errors.Is(err, r.sentinel) {
			return model.WrapError(r.kind, r.rule, "snapshot", err)
		}
	}
	return model.WrapError(model.KindInternal, "", "snapshot", err)
}

// FromRule maps a structured error received from a peer back to the
// archive sentinel named by its rule id. Other errors pass through.
func FromRule(err error) error {
	rule := model.RuleID(err)
	for _, r := range ruleTable {
		if rule == r.rule {
			return r.sentinel
		}
	}
	return err
}
