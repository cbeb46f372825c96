package database

import "context"

type heldConnectionsKey struct{}

type heldConnection struct {
	conn Connection
	next *heldConnection
}

// ContextWithConnection returns a copy of ctx recording conn as held by the unit of work running
// under it. A source returns a held connection it has pinned from ReadWriteConnection, so work
// started with the returned context nests inside the transaction open on conn.
func ContextWithConnection(ctx context.Context, conn Connection) context.Context {
	if conn == nil {
		return ctx
	}
	prev, _ := ctx.Value(heldConnectionsKey{}).(*heldConnection)
	return context.WithValue(ctx, heldConnectionsKey{}, &heldConnection{conn: conn, next: prev})
}

// HeldConnections returns the connections recorded on ctx, innermost first.
func HeldConnections(ctx context.Context) []Connection {
	var conns []Connection
	for h, _ := ctx.Value(heldConnectionsKey{}).(*heldConnection); h != nil; h = h.next {
		conns = append(conns, h.conn)
	}
	return conns
}
