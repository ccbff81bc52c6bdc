/*
gwscope is a scoped entity state layer for game servers. Game state lives in entities: flat records addressed by
entity type, owner and instance, held in memory by one server process, replicated to the clients that may see them
and written behind to a durable store.

# Scopes

Every entity type is registered with a scope:

	Single: one entity per owner, loaded when the owner connects and removed when it disconnects
	Multi:  any number of entities per owner, addressed by instance, created and removed by game logic
	Shared: one entity for the whole server, never persisted

Single and Multi entities are persistent. Mutations mark them dirty and the persistence queue writes the latest
fields of every dirty entity at a fixed interval, so repeated mutations between two writes cost one write.

# Sessions

A client logs in with its owner key. The server loads the Single entity of every Single type and all Multi
entities of the owner, then the session becomes active and the client receives a snapshot of every entity it can
see. Any load failure terminates the session without creating anything.

# Actions

Clients mutate entities only by requesting actions of dispatch tables. A table maps action names to handlers:

	table := gwscope.NewTable("Inventory", 1)
	table.Register("addGold", func(ctx *gwscope.Context, args gwscope.Args) error {
		amount := args.Int(0)
		if amount <= 0 {
			return gwscope.InvalidArgument("bad amount %d", amount)
		}
		ctx.Single("Inventory").IncInt("gold", amount)
		return nil
	})

Unknown actions and invalid arguments are reported to the client and never reach game logic.

# Run server

gwscope does not provide a server executable. A game program registers its types and tables and runs:

	func main() {
		gwscope.Run(func(s *gwscope.Server) {
			s.RegisterType("Inventory", gwscope.Single).DefineField("gold", 0)
			s.AddTable(table)
		})
	}

# Configuration

gwscope uses `gwscope.ini` as the default config file, see gwscope.ini.sample.
*/
package gwscope
