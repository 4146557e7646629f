package orderedmap

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnmarshalKeepsOrder(t *testing.T) {
	m := New[string, string]()
	if err := json.Unmarshal([]byte(`{"z": "1", "a": "2", "m": "3"}`), m); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
	}

	if diff := cmp.Diff([]string{"z", "a", "m"}, keys); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	bts, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := string(bts), `{"z":"1","a":"2","m":"3"}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSetUpdateKeepsPosition(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}

	var nilMap *Map[string, int]
	if nilMap.Len() != 0 {
		t.Error("nil map should be empty")
	}
}
