package backends

import "testing"

func TestMockClientsDefaultAvailable(t *testing.T) {
	clients := []interface {
		Available() bool
		Name() string
	}{
		NewMayastorClient(),
		NewSeaweedFSClient(),
		NewRustFSClient(),
		NewHarvesterClient(),
		NewOpenStackClient(),
	}
	for _, c := range clients {
		if !c.Available() {
			t.Fatalf("%s: expected available by default", c.Name())
		}
	}
}

func TestSetAvailableToggles(t *testing.T) {
	c := NewMayastorClient()
	c.SetAvailable(false)
	if c.Available() {
		t.Fatalf("expected unavailable after SetAvailable(false)")
	}
	c.SetAvailable(true)
	if !c.Available() {
		t.Fatalf("expected available after SetAvailable(true)")
	}
}
