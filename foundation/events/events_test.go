package events_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	evts := events.New()

	t.Log("Given the need to fan out node events.")
	{
		ch1 := evts.Acquire("one")
		ch2 := evts.Acquire("two")

		evts.Send("state: block")

		if <-ch1 != "state: block" || <-ch2 != "state: block" {
			t.Fatalf("\t%s\tShould deliver the message to every subscriber.", failed)
		}
		t.Logf("\t%s\tShould deliver the message to every subscriber.", success)

		for i := 0; i < 200; i++ {
			evts.Send("flood")
		}
		t.Logf("\t%s\tShould not block on a full subscriber.", success)

		if err := evts.Release("one"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a subscriber: %v", failed, err)
		}
		if err := evts.Release("one"); err == nil {
			t.Fatalf("\t%s\tShould fail to release an unknown subscriber.", failed)
		}
		t.Logf("\t%s\tShould release a subscriber once.", success)

		evts.Shutdown()
		if evts.Count() != 0 {
			t.Fatalf("\t%s\tShould remove every subscriber on shutdown.", failed)
		}
		for range ch2 {
		}
		t.Logf("\t%s\tShould close every subscriber channel on shutdown.", success)
	}
}
