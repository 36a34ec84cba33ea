package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blockchainsuperheroes/agentseed/sealing"
)

func printSealUsage(w io.Writer) {
	fmt.Fprintln(w, "agentseed seal: encrypted seed blobs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  agentseed seal keygen [--seed-hex <64hex>]")
	fmt.Fprintln(w, "  agentseed seal encrypt --recipient <hex> --model <hash> --context <hash> <file>")
	fmt.Fprintln(w, "  agentseed seal decrypt --key <hex> --model <hash> --context <hash> <file>")
}

func cmdSeal(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printSealUsage(errOut)
		return 2
	}
	switch args[0] {
	case "keygen":
		return cmdSealKeygen(args[1:], out, errOut)
	case "encrypt":
		return cmdSealCrypt(args[1:], out, errOut, true)
	case "decrypt":
		return cmdSealCrypt(args[1:], out, errOut, false)
	case "help", "-h", "--help":
		printSealUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown seal command: %s\n\n", args[0])
		printSealUsage(errOut)
		return 2
	}
}

func cmdSealKeygen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("seal keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	seedHex := fs.String("seed-hex", "", "Deterministic seed as hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var pub, priv []byte
	var err error
	if *seedHex != "" {
		seed, derr := hexutil.Decode(*seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
		pub, priv, err = sealing.DeriveKeyPair(seed)
	} else {
		pub, priv, err = sealing.GenerateKeyPair()
	}
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "public\t%s\nprivate\t%s\n", hexutil.Encode(pub), hexutil.Encode(priv))
	return 0
}

func cmdSealCrypt(args []string, out io.Writer, errOut io.Writer, encrypt bool) int {
	name, keyFlag := "seal decrypt", "key"
	if encrypt {
		name, keyFlag = "seal encrypt", "recipient"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	keyHex := fs.String(keyFlag, "", "Recipient public key (encrypt) or private key (decrypt) as hex")
	modelHex := fs.String("model", "", "Model hash of the identity")
	contextHex := fs.String("context", "", "Context hash of the identity")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(errOut, "%s: expected exactly one file\n", name)
		return 2
	}
	key, err := parseBytes(keyFlag, *keyHex)
	if err != nil || len(key) == 0 {
		fmt.Fprintf(errOut, "missing or invalid --%s\n", keyFlag)
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
	in, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}

	aad := sealing.IdentityAAD(modelHash, contextHash)
	if encrypt {
		blob, err := sealing.Seal(key, in, aad)
		if err != nil {
			fmt.Fprintf(errOut, "encrypt: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, hexutil.Encode(blob))
		return 0
	}

	blob, err := hexutil.Decode(string(bytes.TrimSpace(in)))
	if err != nil {
		fmt.Fprintf(errOut, "decrypt: blob is not hex: %v\n", err)
		return 1
	}
	secret, err := sealing.Open(key, blob, aad)
	if err != nil {
		fmt.Fprintf(errOut, "decrypt: %v\n", err)
		return 1
	}
	_, _ = out.Write(secret)
	return 0
}
