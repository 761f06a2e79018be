package application

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorling/credvault/internal/domain/model"
)

func queryFixture() []model.Credential {
	return []model.Credential{
		{
			ID: "cred_1_aaaaaaaaa", Category: "Banking", Name: "Treasury Portal",
			Designation: "Cashier", Ranges: []string{"Range I", "Range II"},
			Branch: []string{"Head Office"}, LoginID: "treasury.user",
			EmailURL: "treasury@example.com", Remarks: "rotate quarterly",
		},
		{
			ID: "cred_2_bbbbbbbbb", Category: "Email", Name: "Webmail",
			Designation: "Clerk", Ranges: []string{"Range II"},
			Branch: []string{"Branch Office"}, LoginID: "mail.clerk",
			EmailURL: "clerk@example.com",
		},
		{
			ID: "cred_3_ccccccccc", Category: "Banking", Name: "Loan System",
			Designation: "Officer", Ranges: []string{"Range III"},
			Branch: []string{"Head Office", "Regional Office"}, LoginID: "loan.officer",
			Mobile: "5550199",
		},
	}
}

func idsOf(creds []model.Credential) []string {
	ids := make([]string, 0, len(creds))
	for _, c := range creds {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestFilterEmptyQueryMatchesEverything(t *testing.T) {
	creds := queryFixture()

	got := Filter(creds, Query{})

	assert.Equal(t, idsOf(creds), idsOf(got))
}

func TestFilterByCategoryExactMatch(t *testing.T) {
	got := Filter(queryFixture(), Query{Category: "Banking"})

	assert.Equal(t, []string{"cred_1_aaaaaaaaa", "cred_3_ccccccccc"}, idsOf(got))

	// Category is exact, not substring.
	assert.Empty(t, Filter(queryFixture(), Query{Category: "Bank"}))
}

func TestFilterByRangeMembership(t *testing.T) {
	got := Filter(queryFixture(), Query{Range: "Range II"})

	assert.Equal(t, []string{"cred_1_aaaaaaaaa", "cred_2_bbbbbbbbb"}, idsOf(got))
}

func TestFilterByBranchMembership(t *testing.T) {
	got := Filter(queryFixture(), Query{Branch: "Regional Office"})

	assert.Equal(t, []string{"cred_3_ccccccccc"}, idsOf(got))
}

func TestFilterSearchIsCaseInsensitiveSubstring(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"name field", "treasury", []string{"cred_1_aaaaaaaaa"}},
		{"uppercase needle", "WEBMAIL", []string{"cred_2_bbbbbbbbb"}},
		{"login id", "loan.officer", []string{"cred_3_ccccccccc"}},
		{"mobile", "5550199", []string{"cred_3_ccccccccc"}},
		{"email", "clerk@", []string{"cred_2_bbbbbbbbb"}},
		{"remarks", "rotate", []string{"cred_1_aaaaaaaaa"}},
		{"ranges element", "range iii", []string{"cred_3_ccccccccc"}},
		{"branch element", "regional", []string{"cred_3_ccccccccc"}},
		{"no match", "zzzzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(queryFixture(), Query{Search: tt.search})
			assert.Equal(t, tt.want, idsOf(got))
		})
	}
}

func TestFilterConstraintsAreANDComposed(t *testing.T) {
	// Category and Range each match two records; together they match one.
	got := Filter(queryFixture(), Query{Category: "Banking", Range: "Range II"})
	assert.Equal(t, []string{"cred_1_aaaaaaaaa"}, idsOf(got))

	// Adding a search term that the survivor does not contain empties the set.
	got = Filter(queryFixture(), Query{Category: "Banking", Range: "Range II", Search: "webmail"})
	assert.Empty(t, got)

	// The intersection equals filtering by each constraint independently.
	byCategory := Filter(queryFixture(), Query{Category: "Banking"})
	both := Filter(byCategory, Query{Range: "Range II"})
	assert.Equal(t, []string{"cred_1_aaaaaaaaa"}, idsOf(both))
}

func TestFilterIsStable(t *testing.T) {
	creds := queryFixture()

	got := Filter(creds, Query{Branch: "Head Office"})

	assert.Equal(t, []string{"cred_1_aaaaaaaaa", "cred_3_ccccccccc"}, idsOf(got))
}

func makeCredentials(n int) []model.Credential {
	creds := make([]model.Credential, 0, n)
	for i := 0; i < n; i++ {
		creds = append(creds, model.Credential{ID: fmt.Sprintf("cred_%d_fixedsufx", i)})
	}
	return creds
}

func TestPaginateWindowsCoverEveryItemExactlyOnce(t *testing.T) {
	pageSize := 25
	for _, total := range []int{0, 1, pageSize - 1, pageSize, pageSize + 1, pageSize * 10} {
		t.Run(fmt.Sprintf("total=%d", total), func(t *testing.T) {
			creds := makeCredentials(total)

			first := Paginate(creds, 1, pageSize)
			seen := map[string]bool{}
			count := 0
			for page := 1; page <= first.TotalPages; page++ {
				p := Paginate(creds, page, pageSize)
				assert.Equal(t, page, p.Page)
				assert.Equal(t, total, p.TotalItems)
				for _, c := range p.Items {
					assert.False(t, seen[c.ID], "item %s repeated", c.ID)
					seen[c.ID] = true
				}
				count += len(p.Items)
			}

			assert.Equal(t, total, count)

			wantPages := (total + pageSize - 1) / pageSize
			if wantPages < 1 {
				wantPages = 1
			}
			assert.Equal(t, wantPages, first.TotalPages)
		})
	}
}

func TestPaginateEmptySetReportsOnePage(t *testing.T) {
	p := Paginate(nil, 1, 25)

	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 0, p.TotalItems)
}

func TestPaginateOverflowingPageResetsToFirst(t *testing.T) {
	creds := makeCredentials(30) // 2 pages of 25

	p := Paginate(creds, 9, 25)

	assert.Equal(t, 1, p.Page)
	require.Len(t, p.Items, 25)
	assert.Equal(t, creds[0].ID, p.Items[0].ID)
}

func TestPaginateZeroAndNegativePageResetToFirst(t *testing.T) {
	creds := makeCredentials(10)

	for _, page := range []int{0, -3} {
		p := Paginate(creds, page, 25)
		assert.Equal(t, 1, p.Page)
		assert.Len(t, p.Items, 10)
	}
}

func TestPaginateUnsupportedPageSizeFallsBackToDefault(t *testing.T) {
	creds := makeCredentials(60)

	for _, size := range []int{0, -1, 7, 1000} {
		p := Paginate(creds, 1, size)
		assert.Equal(t, DefaultPageSize, p.PageSize)
		assert.Len(t, p.Items, DefaultPageSize)
	}

	for _, size := range PageSizeOptions {
		p := Paginate(creds, 1, size)
		assert.Equal(t, size, p.PageSize)
	}
}

func TestPaginateLastPageHoldsRemainder(t *testing.T) {
	creds := makeCredentials(26)

	p := Paginate(creds, 2, 25)

	require.Len(t, p.Items, 1)
	assert.Equal(t, creds[25].ID, p.Items[0].ID)
	assert.Equal(t, 2, p.TotalPages)
}
