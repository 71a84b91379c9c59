package chain

// BuiltinChains returns the set of built-in chains.
func BuiltinChains() []Chain {
	return []Chain{
		scanAndPlan(),
		governedUpdate(),
		ledgerReconcile(),
	}
}

// scanAndPlan runs a read-only scan and turns its findings into a plan.
func scanAndPlan() Chain {
	return Chain{
		Name:        "scan-and-plan",
		Description: "Scan the repository read-only, then synthesize a remediation plan from the findings.",
		Builtin:     true,
		Steps: []Step{
			{Name: "Scan", Agent: "repo-scanner", Input: InputInitial},
			{Name: "Plan", Agent: "plan-synthesizer", Input: InputLastOutput},
		},
	}
}

// governedUpdate scans, plans, and applies gated content updates,
// halting when the scan reports a clean tree.
func governedUpdate() Chain {
	return Chain{
		Name:        "governed-update",
		Description: "Scan, plan, and apply gated content updates under the write-gated contract.",
		Builtin:     true,
		Steps: []Step{
			{Name: "Scan", Agent: "repo-scanner", Input: InputInitial, StopOn: []string{"clean=true"}},
			{Name: "Plan", Agent: "plan-synthesizer", Input: InputLastOutput},
			{Name: "Apply", Agent: "content-pruner", Input: InputMerged},
		},
		Merge: MergeAll,
	}
}

// ledgerReconcile refreshes the entity ledger from the current tree.
func ledgerReconcile() Chain {
	return Chain{
		Name:        "ledger-reconcile",
		Description: "Rebuild ledger entries for tracked entities and report checksum drift.",
		Builtin:     true,
		Steps: []Step{
			{Name: "Scan", Agent: "repo-scanner", Input: InputInitial},
			{Name: "Reconcile", Agent: "ledger-keeper", Input: InputLastOutput},
		},
		Stop: StopPolicy{
			Precedence: PrecedenceChainFirst,
			Conditions: []string{"drift_detected=true"},
		},
	}
}
