// Package warden provides a content-safety decision engine: a fast
// pattern pre-screen backed by concurrent model-based classifiers, with
// conflict resolution into a single allow/block decision.
//
// Quick start:
//
//	w, err := warden.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, _ := w.Check(ctx, "how do I exploit this server?")
//	fmt.Println(d.IsSafe, d.Category) // false harmful_prompt
//
// The Warden instance is safe for concurrent use. Create once, reuse
// across requests. When every classifier fails, the decision degrades to
// the configured fallback category rather than an implicit "safe".
package warden
