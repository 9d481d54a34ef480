package cli

import (
	"fmt"
	"io"
)

func PrintRootHelp(w io.Writer) {
	fmt.Fprintln(w, `dbkeeper - browse and edit document databases (mongodb, sqlite, postgres)

USAGE
  dbkeeper [global flags] <command> [args]

GLOBAL FLAGS
  -s, --service <name>          catalog service (with -p, --password)
  -b, --backend mongodb|sqlite|postgres
  -u, --uri <uri|dsn|dir>
  -f, --format auto|pretty|json
      --log-level debug|info|warn|error
      --config <file>           default ~/.dbkeeper/config.yaml
      --cache-dir <dir>         default ~/.dbkeeper/cache
      --keep-services           persist the service catalog (or KEEP_SERVICES=true)

COMMANDS
  service add|list|remove
  status
  metadata
  db list|exists|create|drop|metadata
  collection list|exists|create|drop|rename|info|metadata|export|import|actions|action|exec|schema
  find <db> <collection> [--where expr] [--chain k=v] [--query stage] [--skip n] [--limit n]
  find-all <db> <collection>
  get <db> <collection> <k=v#k=v>
  insert <db> <collection> <json>
  update <db> <collection> (--chain|--where) <json>
  delete <db> <collection> (--chain|--where)
  filter-schema
  doc-schema <db> <collection>
  explain [--where expr]
  shell

WHERE EXPRESSIONS
  name:bob age:42 active:true     implicit AND
  name:bob OR name:alice          OR
  !status:closed                  NOT (single predicates)
  name~"^bo"                      regex
  _id:507f1f77bcf86cd799439011    object id`)
}

func PrintShellHelp(w io.Writer) {
	fmt.Fprintln(w, `Every command runs as in the CLI, without the "dbkeeper" prefix.

SHELL COMMANDS
  use <service> [password]      switch to a catalog service
  connect <backend> <uri>       switch to a direct connection
  help                          command list
  exit | quit`)
}
