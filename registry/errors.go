package registry

import (
	"github.com/blockchainsuperheroes/agentseed/model"
	"github.com/blockchainsuperheroes/agentseed/sigverify"
)

// Stable rule ids for registry failures.
const (
	RuleUnknownIdentity      = "AGENT-LOOKUP-001"
	RuleWalletCollision      = "AGENT-LOOKUP-002"
	RuleUnknownWallet        = "AGENT-LOOKUP-003"
	RuleBadPlatformProof     = "AGENT-AUTH-001"
	RuleBadAgentProof        = "AGENT-AUTH-002"
	RuleNotCustodyOwner      = "AGENT-AUTH-003"
	RuleMalformedProof       = "AGENT-INPUT-001"
	RuleZeroAddress          = "AGENT-INPUT-002"
	RuleReproductionDisabled = "AGENT-REPRO-001"
	RuleLineageCycle         = "AGENT-LINEAGE-001"
)

func notFound(id uint64) error {
	return model.Errorf(model.KindNotFound, RuleUnknownIdentity, "identity %d does not exist", id)
}

// checkProofShape rejects proofs that cannot be a signature at all.
func checkProofShape(proof []byte) error {
	if len(proof) != sigverify.SignatureLength {
		return model.Errorf(model.KindInvalidInput, RuleMalformedProof,
			"proof must be %d bytes, got %d", sigverify.SignatureLength, len(proof))
	}
	return nil
}
