package suggest

import (
	"fmt"
	"testing"

	"resultdb/pkg/models"
)

func item(id int, name string) models.SuggestedItem {
	return models.SuggestedItem{ID: fmt.Sprintf("%d", id), Name: name}
}

func names(items []models.SuggestedItem) map[string]bool {
	out := map[string]bool{}
	for _, it := range items {
		out[it.Name] = true
	}
	return out
}

func TestSearchFindsEveryPrefixInWindow(t *testing.T) {
	tr := New(2, 10, 10)
	tr.Insert("login_test", item(1, "login_test"))

	name := []rune("login_test")
	for l := 2; l <= len(name); l++ {
		p := string(name[:l])
		got := tr.Search(p)
		if len(got) != 1 || got[0].Name != "login_test" {
			t.Fatalf("Search(%q) = %v", p, got)
		}
	}
}

func TestSearchStopsAtMaxQueryLen(t *testing.T) {
	tr := New(2, 4, 10)
	tr.Insert("abcdefgh", item(1, "abcdefgh"))

	if got := tr.Search("abcd"); len(got) != 1 {
		t.Fatalf("prefix at max depth should match, got %v", got)
	}
	if got := tr.Search("abcde"); len(got) != 0 {
		t.Fatalf("prefix beyond max depth is not indexed, got %v", got)
	}
}

func TestSearchCaseFolds(t *testing.T) {
	tr := New(2, 10, 10)
	tr.Insert("Login_Test", item(1, "Login_Test"))

	for _, q := range []string{"lo", "LO", "LogIn"} {
		got := tr.Search(q)
		if len(got) != 1 || got[0].Name != "Login_Test" {
			t.Fatalf("Search(%q) = %v", q, got)
		}
	}
}

func TestShortQueriesAndShortNames(t *testing.T) {
	tr := New(2, 10, 10)
	tr.Insert("a", item(1, "a"))
	tr.Insert("ab", item(2, "ab"))

	if got := tr.Search(""); len(got) != 0 {
		t.Fatalf("empty query = %v", got)
	}
	if got := tr.Search("a"); len(got) != 0 {
		t.Fatalf("below-min query = %v", got)
	}
	got := tr.Search("ab")
	if len(got) != 1 || got[0].Name != "ab" {
		t.Fatalf("Search(ab) = %v; names shorter than min must not be indexed", got)
	}
}

func TestCandidateCapKeepsInsertionOrder(t *testing.T) {
	tr := New(2, 10, 3)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("login_%d", i)
		tr.Insert(name, item(i, name))
	}
	got := tr.Search("login")
	if len(got) != 3 {
		t.Fatalf("cap not applied, got %d items", len(got))
	}
	for i, it := range got {
		if want := fmt.Sprintf("login_%d", i); it.Name != want {
			t.Fatalf("item[%d] = %q, want %q", i, it.Name, want)
		}
	}
}

func TestInsertDeduplicates(t *testing.T) {
	tr := New(2, 10, 10)
	tr.Insert("login", item(1, "login"))
	tr.Insert("login", item(1, "login"))
	if got := tr.Search("login"); len(got) != 1 {
		t.Fatalf("duplicate insert produced %d items", len(got))
	}

	// same name under a different id is a distinct candidate
	tr.Insert("login", item(2, "login"))
	if got := tr.Search("login"); len(got) != 2 {
		t.Fatalf("distinct ids collapsed, got %d items", len(got))
	}
}

func TestSuggestScenario(t *testing.T) {
	tr := New(2, 10, 10)
	for i, n := range []string{"login_test", "login_validation", "logout_test", "other"} {
		tr.Insert(n, item(i, n))
	}

	got := names(tr.Search("log"))
	if !got["login_test"] || !got["login_validation"] || !got["logout_test"] {
		t.Fatalf("missing log* names: %v", got)
	}
	if got["other"] {
		t.Fatalf("unrelated name returned")
	}
	if res := tr.Search("l"); len(res) != 0 {
		t.Fatalf("below-min query must be empty, got %v", res)
	}
	if res := tr.Search(""); len(res) != 0 {
		t.Fatalf("empty query must be empty, got %v", res)
	}
}

func TestSearchReturnsACopy(t *testing.T) {
	tr := New(2, 10, 10)
	tr.Insert("login", item(1, "login"))
	first := tr.Search("lo")
	first[0].Name = "mutated"
	second := tr.Search("lo")
	if second[0].Name != "login" {
		t.Fatalf("internal state leaked: %v", second)
	}
}
