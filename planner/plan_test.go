package planner_test

import (
	"errors"
	"testing"

	"github.com/jacentio/dynamodap/attrmodel"
	"github.com/jacentio/dynamodap/planner"
)

// Scenario 4 (spec §8): status = "issued" AND owner = "u1" against the
// delegation capabilities -> UsingQueries with exactly one KeyCondition on
// owner-status-index, partition owner = "u1", sort status = "issued",
// residual empty.
func TestBuildPlan_Scenario4_ActiveByOwner(t *testing.T) {
	table := delegationsTestTable()
	products := normalize(t, table, `status eq "issued" and owner eq "u1"`)

	plan, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingQueries {
		t.Fatalf("expected UsingQueries, got %v", plan.Kind)
	}
	if len(plan.Queries) != 1 {
		t.Fatalf("expected exactly one KeyCondition, got %d", len(plan.Queries))
	}
	q := plan.Queries[0]
	if q.KeyCondition.Index.Name != "owner-status-index" {
		t.Errorf("expected owner-status-index, got %q", q.KeyCondition.Index.Name)
	}
	if q.KeyCondition.Partition.Value != "u1" {
		t.Errorf("expected partition owner=u1, got %v", q.KeyCondition.Partition.Value)
	}
	if q.KeyCondition.Sort == nil || q.KeyCondition.Sort.Value != "issued" {
		t.Errorf("expected sort status=issued, got %+v", q.KeyCondition.Sort)
	}
	if len(q.Residuals) != 1 || len(q.Residuals[0]) != 0 {
		t.Errorf("expected empty residual, got %+v", q.Residuals)
	}
}

// Scenario 5: status != "issued" AND expires > 1234 AND client_id = "c1" ->
// UsingQueries with exactly two KeyConditions on clientId-status-index,
// partition clientId = "c1", sort status < / > "issued", both with residual
// expires > 1234.
func TestBuildPlan_Scenario5_NotEqualExpansion(t *testing.T) {
	table := delegationsTestTable()
	products := normalize(t, table, `status ne "issued" and expires gt 1234 and clientId eq "c1"`)

	plan, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingQueries {
		t.Fatalf("expected UsingQueries, got %v", plan.Kind)
	}
	if len(plan.Queries) != 2 {
		t.Fatalf("expected exactly two KeyConditions, got %d: %+v", len(plan.Queries), plan.Queries)
	}
	for _, q := range plan.Queries {
		if q.KeyCondition.Index.Name != "clientId-status-index" {
			t.Errorf("expected clientId-status-index, got %q", q.KeyCondition.Index.Name)
		}
		if q.KeyCondition.Partition.Value != "c1" {
			t.Errorf("expected partition clientId=c1, got %v", q.KeyCondition.Partition.Value)
		}
		if q.KeyCondition.Sort == nil || (q.KeyCondition.Sort.Op != planner.OpLt && q.KeyCondition.Sort.Op != planner.OpGt) {
			t.Errorf("expected sort status < or > issued, got %+v", q.KeyCondition.Sort)
		}
		if len(q.Residuals) != 1 || len(q.Residuals[0]) != 1 || q.Residuals[0][0].Attr.Name != "expires" {
			t.Errorf("expected residual {expires > 1234}, got %+v", q.Residuals)
		}
	}
}

// Scenario 6: redirect_uri = "https://example.com" -> UsingScan with a
// single product of a single term (redirect_uri is not in the table's
// attribute map at all for this test, which is itself an UnsupportedQuery
// -- so here we use an attribute that resolves but has no index).
func TestBuildPlan_Scenario6_NonIndexable(t *testing.T) {
	table := delegationsTestTable()
	products := normalize(t, table, `authorizationCodeHash eq "h1"`)

	// authorizationCodeHash IS indexed (authorization-hash-index), so to
	// exercise the true non-indexable case we normalize a filter over an
	// attribute present in the map but absent from every index partition.
	unindexed := normalize(t, table, `expires eq 5`)

	plan, err := planner.BuildPlan(table, unindexed, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingScan {
		t.Fatalf("expected UsingScan for a non-indexed attribute, got %v", plan.Kind)
	}
	if len(plan.Products) != 1 || len(plan.Products[0]) != 1 {
		t.Fatalf("expected single product of single term, got %+v", plan.Products)
	}

	// Sanity: the indexed attribute, by contrast, does plan to UsingQueries.
	plan2, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan2.Kind != planner.UsingQueries {
		t.Errorf("expected authorizationCodeHash eq to use its index, got %v", plan2.Kind)
	}
}

func TestBuildPlan_MixedIndexableAndNot_FallsBackToScan(t *testing.T) {
	table := delegationsTestTable()
	// owner=u1 is indexable; expires=5 alone (second disjunct) is not.
	products := normalize(t, table, `owner eq "u1" or expires eq 5`)

	plan, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingScan {
		t.Fatalf("expected the whole plan to fall back to UsingScan when any disjunct is unindexable, got %v", plan.Kind)
	}
}

func TestBuildPlan_BudgetCap(t *testing.T) {
	table := delegationsTestTable()
	// Five distinct owners, each its own disjunct -> 5 KeyConditions.
	products := normalize(t, table, `owner eq "u1" or owner eq "u2" or owner eq "u3" or owner eq "u4" or owner eq "u5"`)

	if _, err := planner.BuildPlan(table, products, 8); err != nil {
		t.Fatalf("expected 5 KeyConditions to fit under cap 8: %v", err)
	}
	_, err := planner.BuildPlan(table, products, 4)
	if !errors.Is(err, planner.ErrQueryRequiresTooManyOperations) {
		t.Fatalf("expected ErrQueryRequiresTooManyOperations, got %v", err)
	}
}

// A getAll filter equality over a unique attribute (spec §4.7) must plan
// onto its PrimaryKeyIndex with Index.Unique wired, so dynexpr can rewrite
// the partition term to pk = UniquenessPrefix + value.
func TestBuildPlan_UniqueAttributeEquality_UsesPrimaryKeyIndex(t *testing.T) {
	table := accountsTestTable()
	products := normalize(t, table, `userName eq "alice"`)

	plan, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingQueries {
		t.Fatalf("expected UsingQueries, got %v", plan.Kind)
	}
	if len(plan.Queries) != 1 {
		t.Fatalf("expected exactly one KeyCondition, got %d", len(plan.Queries))
	}
	q := plan.Queries[0]
	if q.KeyCondition.Index.Kind != attrmodel.PrimaryKeyIndex {
		t.Fatalf("expected a PrimaryKeyIndex, got %v", q.KeyCondition.Index.Kind)
	}
	if q.KeyCondition.Index.Unique == nil || q.KeyCondition.Index.Unique.Name != "user_name" {
		t.Fatalf("expected Index.Unique wired to user_name, got %+v", q.KeyCondition.Index.Unique)
	}
	if q.KeyCondition.Partition.Value != "alice" {
		t.Errorf("expected partition literal alice, got %v", q.KeyCondition.Partition.Value)
	}
}

func TestBuildPlan_EmptyProductsMatchesNothing(t *testing.T) {
	table := delegationsTestTable()
	products := normalize(t, table, `owner eq "u1" and owner eq "u2"`) // contradictory, dedup'd away

	plan, err := planner.BuildPlan(table, products, 8)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != planner.UsingQueries || len(plan.Queries) != 0 {
		t.Fatalf("expected an empty zero-query plan, got %+v", plan)
	}
	if plan.Accepts(map[string]any{"owner": "u1"}) {
		t.Error("an unsatisfiable plan should accept nothing")
	}
}

// Planner soundness (spec §8): for every accepted filter F and item I,
// Evaluate(F, I) == plan(F).Accepts(I).
func TestPlan_Soundness(t *testing.T) {
	table := delegationsTestTable()
	filters := []string{
		`owner eq "u1"`,
		`status eq "issued" and owner eq "u1"`,
		`status ne "issued" and expires gt 1234 and clientId eq "c1"`,
		`owner eq "u1" or owner eq "u2"`,
		`not (owner eq "u1" and status eq "issued")`,
		`expires eq 5`,
	}
	items := []map[string]any{
		{"owner": "u1", "status": "issued", "clientId": "c1", "expires": "9999"},
		{"owner": "u2", "status": "revoked", "clientId": "c1", "expires": "1"},
		{"owner": "u1", "status": "revoked"},
		{},
	}

	for _, f := range filters {
		e, err := planner.Parse(f)
		if err != nil {
			t.Fatalf("Parse(%q): %v", f, err)
		}
		resolved, err := planner.Resolve(table, e)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", f, err)
		}
		products, err := planner.Normalize(table, e)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", f, err)
		}
		plan, err := planner.BuildPlan(table, products, 8)
		if err != nil {
			t.Fatalf("BuildPlan(%q): %v", f, err)
		}
		for _, item := range items {
			want := planner.Evaluate(resolved, item)
			got := plan.Accepts(item)
			if want != got {
				t.Errorf("filter %q item %+v: Evaluate=%v plan.Accepts=%v", f, item, want, got)
			}
		}
	}
}
