package pgtool

// Binaries invoked by the clone pipeline.
const (
	BinDropDB   = "dropdb"
	BinCreateDB = "createdb"
	BinDump     = "pg_dump"
	BinPsql     = "psql"
)

// Command is one administrative tool invocation, built as an argument list.
// Connection flags are appended by the Runner.
type Command struct {
	Bin  string
	Args []string
}

// Name is a short label used in logs and errors.
func (c Command) Name() string { return c.Bin }

// DropDB removes database name.
func DropDB(name string) Command {
	return Command{Bin: BinDropDB, Args: []string{"--no-password", name}}
}

// CreateDB creates an empty database owned by owner from template.
// An empty owner leaves ownership to the connecting role.
func CreateDB(name, owner, template string) Command {
	args := []string{"--no-password"}
	if owner != "" {
		args = append(args, "--owner", owner)
	}
	if template != "" {
		args = append(args, "--template", template)
	}
	args = append(args, name)
	return Command{Bin: BinCreateDB, Args: args}
}

// Dump writes a plain SQL dump of database into file.
func Dump(database, file string) Command {
	return Command{Bin: BinDump, Args: []string{"--no-password", "--dbname", database, "--file", file}}
}

// Restore replays a plain SQL dump file into database.
func Restore(database, file string) Command {
	return Command{Bin: BinPsql, Args: []string{"--no-password", "--quiet", "--dbname", database, "--file", file}}
}

// Statement runs a single SQL statement against database.
func Statement(database, sql string) Command {
	return Command{Bin: BinPsql, Args: []string{"--no-password", "--quiet", "--dbname", database, "--command", sql}}
}

// Tools lists every binary the pipeline needs.
func Tools() []string {
	return []string{BinDropDB, BinCreateDB, BinDump, BinPsql}
}
