package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// KeyStore is a local-first store of secp256k1 agent keys.
//
// EXPERIMENTAL: layout may change in minor releases.
//
// Layout:
//
//	<Directory>/<name>/root.key
//	<Directory>/<name>/roles/<role>.key
//
// Each file holds a hex-encoded 32-byte seed and is written with mode 0600.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Address    common.Address
	Roles      []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".agentseed", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) rolePath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

func checkName(what, v string) error {
	if v == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, char := range v {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, what)
	}
	return nil
}

func CheckKeyName(identifier string) error { return checkName("identifier", identifier) }

func CheckRole(role string) error { return checkName("role", role) }

// ParseSeedHex decodes a hex seed, with or without 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if _, err := PrivateKeyFromSeed(data); err != nil {
		return nil, err
	}
	return data, nil
}

// NewSeed returns a random valid seed.
func NewSeed() ([]byte, error) {
	for i := 0; i < 16; i++ {
		seed := make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
		if _, err := PrivateKeyFromSeed(seed); err == nil {
			return seed, nil
		}
	}
	return nil, errors.New("could not generate a valid seed")
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if _, err := PrivateKeyFromSeed(seed); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRootKey stores seed as the root key of identifier.
func (ks *KeyStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (common.Address, string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return common.Address{}, "", err
	}
	path := ks.rootPath(identifier)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return common.Address{}, "", err
	}
	addr, err := AddressFromSeed(seed)
	return addr, path, err
}

// DeriveKeyFromRole derives and stores a role key under an existing root key.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, overwrite bool) (common.Address, string, error) {
	if err := CheckKeyName(from); err != nil {
		return common.Address{}, "", err
	}
	if err := CheckRole(role); err != nil {
		return common.Address{}, "", err
	}
	rootSeed, err := readSeed(ks.rootPath(from))
	if err != nil {
		return common.Address{}, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return common.Address{}, "", err
	}
	path := ks.rolePath(from, role)
	if err := writeSeed(path, roleSeed, overwrite); err != nil {
		return common.Address{}, "", err
	}
	addr, err := AddressFromSeed(roleSeed)
	return addr, path, err
}

// ExportAddress returns the address of a stored root or role key.
func (ks *KeyStore) ExportAddress(identifier, role string) (common.Address, error) {
	seed, err := ks.LoadSeed("", identifier, role, "")
	if err != nil {
		return common.Address{}, err
	}
	return AddressFromSeed(seed)
}

// LoadSeed resolves a signer from, in order: a literal hex seed, a key file,
// or a stored key name with optional role.
func (ks *KeyStore) LoadSeed(seedHex, signerName, signerRole, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return readSeed(keyFile)
	}
	if signerName == "" {
		return nil, errors.New("no signer provided")
	}
	if err := CheckKeyName(signerName); err != nil {
		return nil, err
	}
	if signerRole == "" {
		return readSeed(ks.rootPath(signerName))
	}
	if err := CheckRole(signerRole); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(signerName, signerRole))
}

// LoadPrivateKey is LoadSeed followed by PrivateKeyFromSeed.
func (ks *KeyStore) LoadPrivateKey(seedHex, signerName, signerRole, keyFile string) (*ecdsa.PrivateKey, error) {
	seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromSeed(seed)
}

// ListKeys returns stored identifiers with their root address and roles, sorted.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		entry := KeyEntry{Identifier: identifier}
		if seed, err := readSeed(ks.rootPath(identifier)); err == nil {
			entry.Address, _ = AddressFromSeed(seed)
		}
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
		if rerr == nil {
			for _, re := range roleEntries {
				if !re.IsDir() && strings.HasSuffix(re.Name(), ".key") {
					entry.Roles = append(entry.Roles, strings.TrimSuffix(re.Name(), ".key"))
				}
			}
			sort.Strings(entry.Roles)
		}
		result = append(result, entry)
	}
	return result, nil
}
