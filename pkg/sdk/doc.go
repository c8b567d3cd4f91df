// Package brokerdex embeds the start-document exporter in a Go program,
// for producers that want to push run documents without the HTTP service.
//
//	client, _ := brokerdex.New(ctx,
//	    brokerdex.WithElasticsearch("localhost:9200"),
//	    brokerdex.WithIndex("iss"),
//	    brokerdex.WithDocmap([][]string{{"_id", "_id", "str"}, {"PI", "pi"}, {"time", "date", "toisoformat"}}),
//	    brokerdex.WithAllowList("PI", []string{"Mingzhao"}, false),
//	)
//	defer client.Close()
//
//	_, _ = client.Handle(ctx, "start", doc)
//	n, _ := client.Rebuild(ctx, brokerdex.FromSlice(docs...), true)
//	uids, _ := client.UIDs(ctx, "pi:Mingzhao")
//
// The first write to an absent index creates it with the run mapping.
// Another producer deleting the index later is not noticed unless
// WithVerifyAlways is set.
package brokerdex
