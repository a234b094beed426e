package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Load(t *testing.T) {
	type table struct {
		name    string
		content string
		exp     genesis.Genesis
		fail    bool
	}

	def := genesis.Default()
	partial := def
	partial.Difficulty = 3
	partial.GenesisAddress = "G"

	tt := []table{
		{name: "missing", exp: def},
		{name: "partial", content: `{"difficulty": 3, "genesis_address": "G"}`, exp: partial},
		{name: "zero-difficulty", content: `{"difficulty": 0}`, fail: true},
		{name: "bad-json", content: `{"difficulty":`, fail: true},
	}

	t.Log("Given the need to load the genesis file.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the %q file.", testID, tst.name)
			{
				f := func(t *testing.T) {
					path := filepath.Join(t.TempDir(), "genesis.json")
					if tst.content != "" {
						if err := os.WriteFile(path, []byte(tst.content), 0600); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to write the file: %v", failed, testID, err)
						}
					}

					got, err := genesis.Load(path)
					if tst.fail {
						if err == nil {
							t.Fatalf("\t%s\tTest %d:\tShould get an error.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould get an error.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the file: %v", failed, testID, err)
					}
					if got != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %+v", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %+v", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right values.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right values.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_FallbackAddress(t *testing.T) {
	t.Log("Given the need to fund a genesis file that names no address.")
	{
		gen := genesis.Default().WithFallbackAddress("M")
		if gen.GenesisAddress != "M" {
			t.Fatalf("\t%s\tShould fill an empty address, got %q.", failed, gen.GenesisAddress)
		}
		t.Logf("\t%s\tShould fill an empty address.", success)

		gen.GenesisAddress = "G"
		if gen = gen.WithFallbackAddress("M"); gen.GenesisAddress != "G" {
			t.Fatalf("\t%s\tShould keep the configured address, got %q.", failed, gen.GenesisAddress)
		}
		t.Logf("\t%s\tShould keep the configured address.", success)
	}
}
