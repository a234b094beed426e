// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup for the addresses of the key files found there.
package nameservice

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// KeyExt is the file extension of private key files.
const KeyExt = ".rsa"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	addresses map[database.Address]string
}

// New constructs a name service with the key files found under root. The
// name of an address is its key file name without the extension.
func New(root string) (*NameService, error) {
	ns := NameService{
		addresses: make(map[database.Address]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != KeyExt {
			return nil
		}

		privateKey, err := signature.LoadKey(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		address := database.PublicKeyToAddress(&privateKey.PublicKey)
		ns.addresses[address] = strings.TrimSuffix(filepath.Base(fileName), KeyExt)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address. Addresses without a
// name are returned as is.
func (ns *NameService) Lookup(address database.Address) string {
	if ns == nil {
		return string(address)
	}

	name, exists := ns.addresses[address]
	if !exists {
		return string(address)
	}
	return name
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[database.Address]string {
	cpy := make(map[database.Address]string, len(ns.addresses))
	for address, name := range ns.addresses {
		cpy[address] = name
	}
	return cpy
}

// KeyPath returns the key file path for the name inside root.
func KeyPath(root string, name string) string {
	return filepath.Join(root, name+KeyExt)
}
