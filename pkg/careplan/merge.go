package careplan

// deepMerge folds src into dst. Objects merge recursively; arrays and
// scalars from src replace what dst holds.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, val := range src {
		if obj, ok := val.(map[string]any); ok {
			node, ok := dst[key].(map[string]any)
			if !ok {
				node = map[string]any{}
			}
			dst[key] = deepMerge(node, obj)
			continue
		}
		dst[key] = val
	}
	return dst
}

// Merge folds the output of the named stage into plan and returns the
// result. The diagnosis refinement stages update existing nursing
// diagnoses by position instead of replacing the list:
//
//   - stage 2 replaces evidence, risk factors and goals per diagnosis
//   - stage 3 replaces interventions per goal
//   - stage 4 replaces the evaluation per goal
//
// Everything else goes through a deep merge. out is not modified.
func Merge(plan map[string]any, stage string, out map[string]any) map[string]any {
	out = deepCopy(out).(map[string]any)

	switch stage {
	case StageDiagnosis, StageInterventions, StageEvaluation:
		current, ok := plan["nursingDiagnoses"].([]any)
		updates, ok2 := out["nursingDiagnoses"].([]any)
		if ok && ok2 {
			mergeDiagnoses(stage, current, updates)
			delete(out, "nursingDiagnoses")
		}
	}

	return deepMerge(plan, out)
}

func mergeDiagnoses(stage string, current, updates []any) {
	for i, item := range current {
		diag, ok := item.(map[string]any)
		if !ok || i >= len(updates) {
			continue
		}
		update, ok := updates[i].(map[string]any)
		if !ok {
			continue
		}

		if stage == StageDiagnosis {
			for _, key := range []string{"diagnosis_evidence", "diagnosis_risk_factors"} {
				if v, ok := update[key]; ok {
					diag[key] = v
				}
			}
			if goals, ok := update["goals"].([]any); ok {
				diag["goals"] = goals
			}
			continue
		}

		goals, ok := diag["goals"].([]any)
		goalUpdates, ok2 := update["goals"].([]any)
		if !ok || !ok2 {
			continue
		}

		key := "interventions"
		if stage == StageEvaluation {
			key = "evaluation"
		}
		for j, g := range goals {
			goal, ok := g.(map[string]any)
			if !ok || j >= len(goalUpdates) {
				continue
			}
			gu, ok := goalUpdates[j].(map[string]any)
			if !ok {
				continue
			}
			if v, ok := gu[key]; ok {
				goal[key] = v
			}
		}
	}
}
