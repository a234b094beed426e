package validate_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type request struct {
	Address string `json:"address" validate:"required"`
	Host    string `json:"host" validate:"omitempty,hostport"`
}

func Test_Check(t *testing.T) {
	type table struct {
		name   string
		req    request
		fields []string
	}

	tt := []table{
		{name: "valid", req: request{Address: "abc", Host: "127.0.0.1:9080"}},
		{name: "missing", req: request{}, fields: []string{"address"}},
		{name: "badhost", req: request{Address: "abc", Host: "localhost"}, fields: []string{"host"}},
	}

	t.Log("Given the need to validate inbound models.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s model.", testID, tst.name)
				{
					err := validate.Check(tst.req)
					if len(tst.fields) == 0 {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould pass validation: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould pass validation.", success, testID)
						return
					}

					if !validate.IsFieldErrors(err) {
						t.Fatalf("\t%s\tTest %d:\tShould get field errors: %v", failed, testID, err)
					}
					fields := validate.GetFieldErrors(err).Fields()
					for _, name := range tst.fields {
						if _, exists := fields[name]; !exists {
							t.Fatalf("\t%s\tTest %d:\tShould report field %q: %v", failed, testID, name, fields)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould report the failing fields by JSON name.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
