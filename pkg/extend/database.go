package extend

import (
	"context"
	"fmt"
	"os"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

func init() {
	MustRegister("mysql", "execute", func(r runner.CommandRunner) action.Action {
		return &databaseDump{runner: r, dumper: mysqlDumper{}}
	})
	MustRegister("postgresql", "execute", func(r runner.CommandRunner) action.Action {
		return &databaseDump{runner: r, dumper: postgresqlDumper{}}
	})
}

// dumper knows how to invoke one database's dump tool.
type dumper interface {
	name() string
	section(cfg *schema.Configuration) *schema.DatabaseConfig
	// command dumps database, or every database when it is empty, into file.
	command(cfg *schema.DatabaseConfig, database, file string) (string, []string)
}

// databaseDump writes a dump of each configured database into the collect
// directory, where the collect action's archives also end up.
type databaseDump struct {
	runner runner.CommandRunner
	dumper dumper
}

func (d *databaseDump) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	name := d.dumper.name()
	log.Debug("Executing extended action", "action", name)
	if cfg == nil || cfg.Options == nil || cfg.Collect == nil || d.dumper.section(cfg) == nil {
		return fmt.Errorf("%w: %s needs the options, collect and %s sections", errUtils.ErrMissingSection, name, name)
	}
	db := d.dumper.section(cfg)
	if err := validateCompress(db.Compress); err != nil {
		return err
	}

	if db.All {
		log.Info("Backing up all databases", "action", name)
		if err := d.dump(ctx, cfg, db, ""); err != nil {
			return err
		}
	} else {
		log.Debug("Backing up individual databases", "action", name, "count", len(db.Databases))
		for _, database := range db.Databases {
			log.Info("Backing up database", "action", name, "database", database)
			if err := d.dump(ctx, cfg, db, database); err != nil {
				return err
			}
		}
	}
	log.Info("Executed extended action successfully", "action", name)
	return nil
}

func (d *databaseDump) dump(ctx context.Context, cfg *schema.Configuration, db *schema.DatabaseConfig, database string) error {
	tmp, err := os.CreateTemp(cfg.Options.WorkingDir, "cback-"+d.dumper.name()+"-")
	if err != nil {
		return err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	command, args := d.dumper.command(db, database, tmp.Name())
	result, err := d.runner.Run(ctx, command, args)
	if err != nil {
		return fmt.Errorf("%w: %w", errUtils.ErrDatabaseDumpFailed, err)
	}
	if result.ExitCode != 0 {
		target := database
		if target == "" {
			target = "all databases"
		}
		return fmt.Errorf("%w: error (%d) dumping %s", errUtils.ErrDatabaseDumpFailed, result.ExitCode, target)
	}

	base := d.dumper.name() + "dump.txt"
	if database != "" {
		base = d.dumper.name() + "dump-" + database + ".txt"
	}
	out, err := createOutput(cfg.Collect.TargetDir, base, db.Compress)
	if err != nil {
		return err
	}
	if err := out.copyInto(tmp.Name()); err != nil {
		out.Close()
		return err
	}
	return out.finish(cfg.Options)
}

type mysqlDumper struct{}

func (mysqlDumper) name() string { return "mysql" }

func (mysqlDumper) section(cfg *schema.Configuration) *schema.DatabaseConfig { return cfg.MySQL }

func (mysqlDumper) command(cfg *schema.DatabaseConfig, database, file string) (string, []string) {
	var args []string
	if database == "" {
		args = append(args, "--all-databases")
	} else {
		args = append(args, "--databases")
	}
	args = append(args, "--flush-logs", "--opt", "--result-file="+file)
	if cfg.User != "" {
		log.Warn("MySQL user will be visible in the process listing, consider ~/.my.cnf")
		args = append(args, "--user="+cfg.User)
	}
	if cfg.Password != "" {
		log.Warn("MySQL password will be visible in the process listing, consider ~/.my.cnf")
		args = append(args, "--password="+cfg.Password)
	}
	if database != "" {
		args = append(args, database)
	}
	return "mysqldump", args
}

type postgresqlDumper struct{}

func (postgresqlDumper) name() string { return "postgresql" }

func (postgresqlDumper) section(cfg *schema.Configuration) *schema.DatabaseConfig {
	return cfg.PostgreSQL
}

// Passwords come from ~/.pgpass; pg_dump has no flag for one.
func (postgresqlDumper) command(cfg *schema.DatabaseConfig, database, file string) (string, []string) {
	args := []string{"-f", file}
	if cfg.User != "" {
		args = append(args, "-U", cfg.User)
	}
	if database == "" {
		return "pg_dumpall", args
	}
	return "pg_dump", append(args, database)
}
