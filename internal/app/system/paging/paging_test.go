package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/workers", DefaultSize},
		{"/workers?limit=10", 10},
		{"/workers?limit=0", DefaultSize},
		{"/workers?limit=-3", DefaultSize},
		{"/workers?limit=abc", DefaultSize},
		{"/workers?limit=5000", MaxSize},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := ParseSize(httptest.NewRequest("GET", tt.target, nil)); got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.target, got, tt.want)
			}
		})
	}
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name       string
		rows       []int
		before     string
		after      string
		wantRows   []int
		wantResult Result
	}{
		{
			name:       "first page with no extra",
			rows:       []int{1, 2},
			wantRows:   []int{1, 2},
			wantResult: Result{},
		},
		{
			name:       "first page with extra",
			rows:       []int{1, 2, 3, 4},
			wantRows:   []int{1, 2, 3},
			wantResult: Result{HasNext: true},
		},
		{
			name:       "forward page with extra",
			rows:       []int{1, 2, 3, 4},
			after:      "c",
			wantRows:   []int{1, 2, 3},
			wantResult: Result{HasPrev: true, HasNext: true},
		},
		{
			name:       "forward page without extra",
			rows:       []int{1},
			after:      "c",
			wantRows:   []int{1},
			wantResult: Result{HasPrev: true},
		},
		{
			name:       "backward page with extra",
			rows:       []int{1, 2, 3, 4},
			before:     "c",
			wantRows:   []int{2, 3, 4},
			wantResult: Result{HasPrev: true, HasNext: true},
		},
		{
			name:       "backward page without extra",
			rows:       []int{1, 2},
			before:     "c",
			wantRows:   []int{1, 2},
			wantResult: Result{HasNext: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([]int(nil), tt.rows...)
			got := TrimPage(&rows, tt.before, tt.after, 3)
			if got != tt.wantResult {
				t.Errorf("TrimPage() = %+v, want %+v", got, tt.wantResult)
			}
			if len(rows) != len(tt.wantRows) {
				t.Fatalf("rows = %v, want %v", rows, tt.wantRows)
			}
			for i := range rows {
				if rows[i] != tt.wantRows[i] {
					t.Fatalf("rows = %v, want %v", rows, tt.wantRows)
				}
			}
		})
	}
}

func TestConfigureKeyset(t *testing.T) {
	tests := []struct {
		name      string
		before    string
		after     string
		wantDir   Direction
		wantOrder int
	}{
		{"first page", "", "", Forward, 1},
		{"after cursor", "", "somecursor", Forward, 1},
		{"before cursor", "somecursor", "", Backward, -1},
		{"before takes precedence", "b", "a", Backward, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigureKeyset(tt.before, tt.after, 0)
			if got.Direction != tt.wantDir {
				t.Errorf("Direction = %v, want %v", got.Direction, tt.wantDir)
			}
			if got.SortOrder != tt.wantOrder {
				t.Errorf("SortOrder = %v, want %v", got.SortOrder, tt.wantOrder)
			}
			if got.Size != DefaultSize {
				t.Errorf("Size = %d, want %d", got.Size, DefaultSize)
			}
		})
	}
}

func TestConfigureKeyset_RoundTripsCursor(t *testing.T) {
	type row struct {
		Key string
		ID  primitive.ObjectID
	}
	rows := []row{{"amine", primitive.NewObjectID()}, {"zineb", primitive.NewObjectID()}}
	_, next := BuildCursors(rows,
		func(r row) string { return r.Key },
		func(r row) primitive.ObjectID { return r.ID },
	)

	cfg := ConfigureKeyset("", next, 10)
	if cfg.Cursor == nil {
		t.Fatal("expected cursor to decode")
	}
	if cfg.Cursor.CI != "zineb" || cfg.Cursor.ID != rows[1].ID {
		t.Errorf("cursor = %+v, want last row", *cfg.Cursor)
	}
	if cfg.KeysetWindow("full_name_ci") == nil {
		t.Error("expected a keyset window with a cursor")
	}
	if ConfigureKeyset("", "", 10).KeysetWindow("full_name_ci") != nil {
		t.Error("first page must not have a keyset window")
	}
}

func TestApplyToFind(t *testing.T) {
	find := options.Find()
	ConfigureKeyset("", "", 20).ApplyToFind(find, "full_name_ci")
	if find.Limit == nil || *find.Limit != 21 {
		t.Errorf("limit = %v, want 21", find.Limit)
	}
}

func TestReverse(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	Reverse(rows)
	want := []int{4, 3, 2, 1}
	for i := range rows {
		if rows[i] != want[i] {
			t.Fatalf("Reverse() = %v, want %v", rows, want)
		}
	}
}

func TestBuildCursors_Empty(t *testing.T) {
	prev, next := BuildCursors([]int{}, func(int) string { return "" }, func(int) primitive.ObjectID { return primitive.NilObjectID })
	if prev != "" || next != "" {
		t.Errorf("BuildCursors(empty) = (%q, %q)", prev, next)
	}
}
