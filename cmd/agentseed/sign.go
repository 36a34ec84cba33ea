package main

import (
	"flag"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blockchainsuperheroes/agentseed/authz"
	"github.com/blockchainsuperheroes/agentseed/keys"
)

// digestFunc builds an operation digest from parsed flags.
type digestFunc func() (common.Hash, error)

type signOp struct {
	usage string
	bind  func(fs *flag.FlagSet) digestFunc
}

func parseBig(flagName, v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 0)
	if !ok || !authz.ValidUint256(n) {
		return nil, fmt.Errorf("invalid --%s: %q is not an unsigned 256-bit integer", flagName, v)
	}
	return n, nil
}

var signOps = map[string]signOp{
	"register": {
		usage: "--caller <addr> --model <hash> --memory <hash> --context <hash>",
		bind: func(fs *flag.FlagSet) digestFunc {
			caller := fs.String("caller", "", "Address that will call RegisterSelf")
			m := fs.String("model", "", "Model hash")
			mem := fs.String("memory", "", "Memory hash")
			c := fs.String("context", "", "Context hash")
			return func() (common.Hash, error) {
				addr, err := parseAddress("caller", *caller)
				if err != nil {
					return common.Hash{}, err
				}
				hs, err := parseHashes([2]string{"model", *m}, [2]string{"memory", *mem}, [2]string{"context", *c})
				if err != nil {
					return common.Hash{}, err
				}
				return authz.RegisterDigest(addr, hs[0], hs[1], hs[2]), nil
			}
		},
	},
	"reproduce": {
		usage: "--parent <id> --memory <hash> --timestamp <unix>",
		bind: func(fs *flag.FlagSet) digestFunc {
			parent := fs.Uint64("parent", 0, "Parent identity id")
			mem := fs.String("memory", "", "Offspring memory hash")
			ts := fs.Uint64("timestamp", 0, "Unix time of the Reproduce call")
			return func() (common.Hash, error) {
				h, err := parseHash("memory", *mem)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.ReproduceDigest(*parent, h, *ts), nil
			}
		},
	},
	"memory": {
		usage: "--id <id> --memory <hash> [--uri <uri>]",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			mem := fs.String("memory", "", "New memory hash")
			uri := fs.String("uri", "", "Storage URI")
			return func() (common.Hash, error) {
				h, err := parseHash("memory", *mem)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.MemoryDigest(*id, h, *uri), nil
			}
		},
	},
	"certify": {
		usage: "--id <id> --cert <n>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			cert := fs.Uint64("cert", 0, "Certification id")
			return func() (common.Hash, error) { return authz.CertificationDigest(*id, *cert), nil }
		},
	},
	"bind": {
		usage: "--id <id> --container <addr> --item <n>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			container := fs.String("container", "", "Container address")
			item := fs.String("item", "", "Item id")
			return func() (common.Hash, error) {
				c, err := parseAddress("container", *container)
				if err != nil {
					return common.Hash{}, err
				}
				n, err := parseBig("item", *item)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.BindDigest(*id, c, n), nil
			}
		},
	},
	"unbind": {
		usage: "--id <id> --container <addr> --item <n> --recipient <addr>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			container := fs.String("container", "", "Container address")
			item := fs.String("item", "", "Item id")
			recipient := fs.String("recipient", "", "Recipient address")
			return func() (common.Hash, error) {
				c, err := parseAddress("container", *container)
				if err != nil {
					return common.Hash{}, err
				}
				r, err := parseAddress("recipient", *recipient)
				if err != nil {
					return common.Hash{}, err
				}
				n, err := parseBig("item", *item)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.UnbindDigest(*id, c, n, r), nil
			}
		},
	},
	"capability": {
		usage: "--id <id> --cap <hash> [--uri <uri>]",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			capHex := fs.String("cap", "", "Capability hash")
			uri := fs.String("uri", "", "Capability URI")
			return func() (common.Hash, error) {
				h, err := parseHash("cap", *capHex)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.CapabilityDigest(*id, h, *uri), nil
			}
		},
	},
	"revoke": {
		usage: "--id <id> --cap <hash>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			capHex := fs.String("cap", "", "Capability hash")
			return func() (common.Hash, error) {
				h, err := parseHash("cap", *capHex)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.RevokeDigest(*id, h), nil
			}
		},
	},
	"execute": {
		usage: "--id <id> --target <addr> --amount <n> [--payload <hex>] --nonce <n>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			target := fs.String("target", "", "Call target")
			amount := fs.String("amount", "0", "Amount")
			payload := fs.String("payload", "", "Call payload as 0x-hex")
			nonce := fs.Uint64("nonce", 0, "Current nonce of the identity")
			return func() (common.Hash, error) {
				t, err := parseAddress("target", *target)
				if err != nil {
					return common.Hash{}, err
				}
				a, err := parseBig("amount", *amount)
				if err != nil {
					return common.Hash{}, err
				}
				p, err := parseBytes("payload", *payload)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.ExecuteDigest(*id, t, a, p, *nonce), nil
			}
		},
	},
	"batch": {
		usage: "--id <id> --call <addr>,<amount>[,<hex payload>] [--call ...] --nonce <n>",
		bind: func(fs *flag.FlagSet) digestFunc {
			id := fs.Uint64("id", 0, "Identity id")
			var calls stringList
			fs.Var(&calls, "call", "Call as target,amount[,payload]; repeat in batch order")
			nonce := fs.Uint64("nonce", 0, "Current nonce of the identity")
			return func() (common.Hash, error) {
				targets, amounts, payloads, err := parseCalls(calls)
				if err != nil {
					return common.Hash{}, err
				}
				return authz.BatchDigest(*id, authz.BatchHash(targets, amounts, payloads), *nonce), nil
			}
		},
	},
}

func parseHashes(pairs ...[2]string) ([]common.Hash, error) {
	out := make([]common.Hash, len(pairs))
	for i, p := range pairs {
		h, err := parseHash(p[0], p[1])
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func parseCalls(calls []string) ([]common.Address, []*big.Int, [][]byte, error) {
	targets := make([]common.Address, 0, len(calls))
	amounts := make([]*big.Int, 0, len(calls))
	payloads := make([][]byte, 0, len(calls))
	for _, c := range calls {
		parts := strings.Split(c, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, nil, nil, fmt.Errorf("invalid --call %q: want target,amount[,payload]", c)
		}
		t, err := parseAddress("call", parts[0])
		if err != nil {
			return nil, nil, nil, err
		}
		a, err := parseBig("call", parts[1])
		if err != nil {
			return nil, nil, nil, err
		}
		var p []byte
		if len(parts) == 3 {
			if p, err = parseBytes("call", parts[2]); err != nil {
				return nil, nil, nil, err
			}
		}
		targets = append(targets, t)
		amounts = append(amounts, a)
		payloads = append(payloads, p)
	}
	return targets, amounts, payloads, nil
}

func printSignUsage(w io.Writer) {
	fmt.Fprintln(w, "agentseed sign: produce authorization proofs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	names := make([]string, 0, len(signOps))
	for name := range signOps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  agentseed sign %s %s\n", name, signOps[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signer: --seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>")
	fmt.Fprintln(w, "Add --digest-only to print the digest without signing.")
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printSignUsage(errOut)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printSignUsage(out)
		return 0
	}
	op, ok := signOps[args[0]]
	if !ok {
		fmt.Fprintf(errOut, "unknown sign operation: %s\n\n", args[0])
		printSignUsage(errOut)
		return 2
	}

	fs := flag.NewFlagSet("sign "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	digest := op.bind(fs)

	var seedHex, signer, signerRole, keyFile string
	var digestOnly bool
	fs.StringVar(&seedHex, "seed-hex", "", "Signer seed as 64 hex chars")
	fs.StringVar(&signer, "signer", "", "Stored key name")
	fs.StringVar(&signerRole, "signer-role", "", "Role of the stored key")
	fs.StringVar(&keyFile, "key-file", "", "File holding a hex seed")
	fs.BoolVar(&digestOnly, "digest-only", false, "Print the digest and exit")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	d, err := digest()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if digestOnly {
		_, _ = fmt.Fprintln(out, d.Hex())
		return 0
	}

	ks, err := keyStore()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	priv, err := ks.LoadPrivateKey(seedHex, signer, signerRole, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 1
	}
	sig, err := keys.SignDigest(d, priv)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, hexutil.Encode(sig))
	return 0
}
