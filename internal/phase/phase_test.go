package phase

import (
	"errors"
	"testing"
)

func TestParseValidNames(t *testing.T) {
	tests := []struct {
		name string
		want Phase
	}{
		{"express", Express},
		{"ask", Ask},
		{"explore", Explore},
		{"plan", Plan},
		{"code", Code},
		{"test", Test},
		{"complete", Complete},
		{"EXPLORE", Explore},
		{"  code  ", Code},
	}

	for _, tt := range tests {
		got, err := Parse(tt.name)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseUnknownName(t *testing.T) {
	for _, name := range []string{"", "bogus", "deploy"} {
		if _, err := Parse(name); !errors.Is(err, ErrUnknownPhase) {
			t.Errorf("Parse(%q) error = %v, want ErrUnknownPhase", name, err)
		}
	}
}

func TestNextFollowsFixedOrder(t *testing.T) {
	for i := 0; i < len(Order)-1; i++ {
		next, ok := Order[i].Next()
		if !ok {
			t.Fatalf("%v.Next() reported no successor", Order[i])
		}
		if next != Order[i+1] {
			t.Errorf("%v.Next() = %v, want %v", Order[i], next, Order[i+1])
		}
	}
}

func TestNextAtTerminal(t *testing.T) {
	if _, ok := Complete.Next(); ok {
		t.Error("Complete.Next() reported a successor")
	}
	if !Complete.Terminal() {
		t.Error("Complete.Terminal() = false")
	}
	if Express.Terminal() {
		t.Error("Express.Terminal() = true")
	}
}

func TestValid(t *testing.T) {
	for _, p := range Order {
		if !p.Valid() {
			t.Errorf("%v.Valid() = false", p)
		}
	}
	if Phase("deploy").Valid() {
		t.Error(`Phase("deploy").Valid() = true`)
	}
}
