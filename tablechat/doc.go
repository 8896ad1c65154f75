// Package tablechat is the live chat client for a game table.
//
// A Manager keeps one WebSocket open to the table server and redials after
// a fixed delay whenever it drops. Inbound frames are appended to a Store,
// which also tracks connection status and notifies subscribers. A
// HistoryLoader fetches earlier messages over HTTP and prepends them, so
// history always sits ahead of live traffic no matter which arrives first.
// A Gateway posts outbound messages over HTTP.
//
// None of these components return transport or delivery failures to the
// caller. They log them through Logger and report them to an error callback.
//
// Client wires all of them together:
//
//	client := tablechat.NewClient(cfg, tablechat.Options{
//		Tokens:  auth.Static(token),
//		History: api,
//		Poster:  api,
//	})
//	client.Subscribe(func(s tablechat.State) { render(s) })
//	_ = client.Join(ctx, tableID)
//	defer client.Close()
package tablechat
