// Package workflow keeps a registry of workflows and runs them through a
// dispatcher.
//
//	mgr := workflow.NewManager(rt)
//	w, _ := workflow.NewBuilder("id1").
//	    Code("function add_numbers(a, b) { return a + b; }", "add_numbers").
//	    Args(clv.Int(3), clv.Int(4)).
//	    Build()
//	if err := mgr.AddWorkflow(w); err != nil { ... }
//	report, err := mgr.StartWorkflows(ctx)
//
// StartWorkflows submits every workflow before awaiting any of them, so
// they queue together and await concurrently. It never stops at the first
// failure: the Report holds a result for every workflow and the returned
// error joins the failures.
package workflow
