package pot

import "testing"

func TestBuildSymmetry(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B", "C"}
	pickTime := map[string]float64{"A": 10, "B": 12, "C": 15}
	table := Build(ids, pickTime)

	for _, i := range ids {
		for _, j := range ids {
			oij, _ := table.Offset(i, j)
			oji, _ := table.Offset(j, i)
			if oij+oji != 0 {
				t.Errorf("expected offset(%s,%s) + offset(%s,%s) == 0, got %v + %v", i, j, j, i, oij, oji)
			}
		}
	}
}

func TestValidateWithinTolerance(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B"}
	table := Build(ids, map[string]float64{"A": 0, "B": 2})
	proj := table.NewProjection(ids)

	observed := map[string]float64{"A": 100, "B": 102.0005}
	if !proj.Validate(observed, 1e-3, false) {
		t.Error("expected validation to pass within tolerance")
	}
}

func TestValidateOutsideTolerance(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B"}
	table := Build(ids, map[string]float64{"A": 0, "B": 2})
	proj := table.NewProjection(ids)

	observed := map[string]float64{"A": 100, "B": 102.5}
	if proj.Validate(observed, 1e-3, false) {
		t.Error("expected validation to fail outside tolerance")
	}
}

func TestValidateSingleMemberTriviallyPasses(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B", "C"}
	table := Build(ids, map[string]float64{"A": 0, "B": 2, "C": 5})
	proj := table.NewProjection([]string{"A"})

	if !proj.Validate(map[string]float64{"A": 123}, 0, false) {
		t.Error("expected single-member projection to trivially pass")
	}
}

func TestValidateDisabledAlwaysPasses(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B"}
	table := Build(ids, map[string]float64{"A": 0, "B": 2})
	proj := table.NewProjection(ids)

	observed := map[string]float64{"A": 100, "B": 999}
	if !proj.Validate(observed, 0, true) {
		t.Error("expected disabled POT check to always pass")
	}
}

func TestValidateZeroToleranceGating(t *testing.T) {
	t.Parallel()

	ids := []string{"A", "B"}
	table := Build(ids, map[string]float64{"A": 0, "B": 2})
	proj := table.NewProjection(ids)

	exact := map[string]float64{"A": 100, "B": 102}
	if !proj.Validate(exact, 0, false) {
		t.Error("expected exact offset match to pass with zero tolerance")
	}

	offByEpsilon := map[string]float64{"A": 100, "B": 102.0001}
	if proj.Validate(offByEpsilon, 0, false) {
		t.Error("expected any non-zero deviation to fail with zero tolerance")
	}
}
