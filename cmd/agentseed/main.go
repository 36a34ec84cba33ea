package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blockchainsuperheroes/agentseed/keys"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "archive":
		return cmdArchive(args[1:], out, errOut)
	case "derive":
		return cmdDerive(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "agentseed: agent identity tooling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  agentseed key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  agentseed key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  agentseed key list")
	fmt.Fprintln(w, "  agentseed key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  agentseed key address --name <name> [--role <role>]")
	fmt.Fprintln(w, "  agentseed derive --model <hash> --context <hash> --id <n> [--generation <n>]")
	fmt.Fprintln(w, "  agentseed sign <operation> [flags] (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>)")
	fmt.Fprintln(w, "  agentseed archive put (--dir <dir> | --remote <host:port>) <file>")
	fmt.Fprintln(w, "  agentseed archive get (--dir <dir> | --remote <host:port>) --uri <ipfs://cid>")
	fmt.Fprintln(w, "  agentseed archive export|import ... (run `agentseed archive help`)")
	fmt.Fprintln(w, "  agentseed seal keygen [--seed-hex <64hex>]")
	fmt.Fprintln(w, "  agentseed seal encrypt --recipient <hex> --model <hash> --context <hash> <file>")
	fmt.Fprintln(w, "  agentseed seal decrypt --key <hex> --model <hash> --context <hash> <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys are stored under ~/.agentseed/keys/<name> (override with AGENTSEED_KEYSTORE)")
	fmt.Fprintln(w, "  - sign prints a 65-byte r||s||v proof as 0x-hex; run `agentseed sign help` for operations")
	fmt.Fprintln(w, "  - archive put prints the storage URI and the memory hash to commit with UpdateMemory")
}

func keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(os.Getenv("AGENTSEED_KEYSTORE"))
}

func parseHash(flagName, v string) (common.Hash, error) {
	if v == "" {
		return common.Hash{}, fmt.Errorf("missing --%s", flagName)
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid --%s: %v", flagName, err)
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid --%s: longer than 32 bytes", flagName)
	}
	return common.BytesToHash(b), nil
}

func parseAddress(flagName, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid --%s: %q is not a hex address", flagName, v)
	}
	return common.HexToAddress(v), nil
}

func parseBytes(flagName, v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %v", flagName, err)
	}
	return b, nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	modelHex := fs.String("model", "", "Model hash")
	contextHex := fs.String("context", "", "Context hash")
	id := fs.Uint64("id", 0, "Identity id")
	generation := fs.Uint64("generation", 0, "Generation (0 for a root identity)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	modelHash, err := parseHash("model", *modelHex)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	contextHash, err := parseHash("context", *contextHex)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if *id == 0 {
		fmt.Fprintln(errOut, "missing --id")
		return 2
	}
	if *generation == 0 {
		fmt.Fprintln(out, keys.DeriveAgentAddress(modelHash, contextHash, *id).Hex())
		return 0
	}
	fmt.Fprintln(out, keys.DeriveOffspringAddress(modelHash, contextHash, *id, *generation).Hex())
	return 0
}
