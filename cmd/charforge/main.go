package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ironlantern/charforge/internal/character"
	"github.com/ironlantern/charforge/internal/config"
	"github.com/ironlantern/charforge/internal/database"
	"github.com/ironlantern/charforge/internal/engine"
	"github.com/ironlantern/charforge/internal/levelup"
	"github.com/ironlantern/charforge/internal/logger"
	"github.com/ironlantern/charforge/internal/override"
	"github.com/ironlantern/charforge/internal/rules"
)

const usage = `Usage: charforge [flags] <command> [args]

Commands:
  create <name>                         create a character
  list                                  list characters
  show <name>                           print the derived-stat sheet
  levelup <name> <class> [skill ...]    take a level (skills trained on the first level)
  leveldown <name>                      remove the most recent level
  learn <name> <spell> <origin>         learn a spell
  unlearn <name> <spell> <origin>       unlearn a spell
  prepare <name> <spell> <origin>       prepare a known spell
  unprepare <name> <spell> <origin>     release a prepared spell
  skillup <name> <skill>                spend points to raise a skill tier
  skilldown <name> <skill>              retrain a skill tier for a refund
  setfinal <name> <key> <value> <why>   pin a derived value
  clearfinal <name> <key>               remove a pinned value
  adddelta <name> <key> <amt> <why>     add an adjustment
  audit <name>                          print recent changes
`

func main() {
	configPath := flag.String("config", "charforge.yaml", "Path to config YAML file")
	actorName := flag.String("actor", "cli", "Actor name recorded in the audit trail")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	reg, err := rules.LoadDir(cfg.Rules.Dir)
	if err != nil {
		log.Fatalf("Failed to load rule data from %s: %v", cfg.Rules.Dir, err)
	}

	db, err := database.Open(database.Config{
		Driver:     cfg.Database.Driver,
		SQLitePath: cfg.Database.Path,
		Postgres: database.PostgresConfig{
			Host:     cfg.Database.Postgres.Host,
			Port:     cfg.Database.Postgres.Port,
			User:     cfg.Database.Postgres.User,
			Password: cfg.Database.Postgres.Password,
			Database: cfg.Database.Postgres.Database,
			SSLMode:  cfg.Database.Postgres.SSLMode,
		},
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	seed := cfg.Engine.DiceSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	eng := engine.New(reg, db, database.NewAuditSink(db), seed)

	app := &app{eng: eng, db: db, actor: engine.Actor{Name: *actorName, Role: "cli"}, auditLimit: cfg.Engine.AuditLimit}
	if err := app.run(context.Background(), flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	eng        *engine.Engine
	db         *database.Database
	actor      engine.Actor
	auditLimit int
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return a.create(ctx, rest)
	case "list":
		return a.list(ctx)
	case "show":
		return a.show(ctx, rest)
	case "levelup":
		return a.levelUp(ctx, rest)
	case "leveldown":
		return a.levelDown(ctx, rest)
	case "learn", "unlearn", "prepare", "unprepare":
		return a.spell(ctx, cmd, rest)
	case "skillup", "skilldown":
		return a.skill(ctx, cmd, rest)
	case "setfinal":
		return a.setFinal(ctx, rest)
	case "clearfinal":
		return a.clearFinal(ctx, rest)
	case "adddelta":
		return a.addDelta(ctx, rest)
	case "audit":
		return a.audit(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// resolveID maps a character name to its ID.
func (a *app) resolveID(ctx context.Context, name string) (string, error) {
	ch, err := a.db.LoadCharacterByName(ctx, name)
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (a *app) create(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("create needs a name")
	}
	ch := character.New(args[0])
	if err := a.db.CreateCharacter(ctx, ch); err != nil {
		return err
	}
	fmt.Printf("Created %s (%s)\n", ch.Name, ch.ID)
	return nil
}

func (a *app) list(ctx context.Context) error {
	list, err := a.db.ListCharacters(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Printf("%-20s level %-3d HP %-4d %s\n", s.Name, s.Level, s.HPMax, s.ID)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show needs a name")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	snap, err := a.eng.ComputeSnapshot(ctx, id)
	if err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}

func (a *app) levelUp(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("levelup needs a name and a class")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	var picks levelup.Picks
	for _, s := range args[2:] {
		picks.StartingSkills = append(picks.StartingSkills, rules.SkillID(s))
	}
	res, err := a.eng.LevelUp(ctx, a.actor, id, rules.ClassID(args[1]), picks)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s %d (level %d), +%d HP", args[0], res.Class, res.ClassLevel, res.TotalLevel, res.HPGain)
	if res.SkillPoints > 0 {
		fmt.Printf(", +%d skill points", res.SkillPoints)
	}
	fmt.Println()
	return nil
}

func (a *app) levelDown(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("leveldown needs a name")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := a.eng.LevelDown(ctx, a.actor, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s dropped a %s level, now level %d (-%d HP, %d features removed)\n",
		args[0], res.Class, res.TotalLevel, res.HPLost, res.FeaturesRemoved)
	return nil
}

func (a *app) spell(ctx context.Context, cmd string, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%s needs a name, a spell, and an origin", cmd)
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	spell, origin := rules.SpellID(args[1]), args[2]
	switch cmd {
	case "learn":
		err = a.eng.LearnSpell(ctx, a.actor, id, spell, origin)
	case "unlearn":
		err = a.eng.UnlearnSpell(ctx, a.actor, id, spell, origin)
	case "prepare":
		err = a.eng.PrepareSpell(ctx, a.actor, id, spell, origin)
	case "unprepare":
		err = a.eng.UnprepareSpell(ctx, a.actor, id, spell, origin)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s %s\n", args[0], cmd, spell)
	return nil
}

func (a *app) skill(ctx context.Context, cmd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%s needs a name and a skill", cmd)
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	skill := rules.SkillID(args[1])
	if cmd == "skillup" {
		err = a.eng.UpgradeSkillTier(ctx, a.actor, id, skill)
	} else {
		err = a.eng.RetrainSkillTier(ctx, a.actor, id, skill)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s %s\n", args[0], cmd, skill)
	return nil
}

func (a *app) setFinal(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("setfinal needs a name, a key, a value, and a reason")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	value, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("value %q is not a number", args[2])
	}
	return a.eng.SetOverrideFinal(ctx, a.actor, id, key, value, args[3])
}

func (a *app) clearFinal(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("clearfinal needs a name and a key")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	return a.eng.ClearOverrideFinal(ctx, a.actor, id, key)
}

func (a *app) addDelta(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("adddelta needs a name, a key, an amount, and a reason")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	key, err := parseKey(args[1])
	if err != nil {
		return err
	}
	amount, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("amount %q is not a number", args[2])
	}
	deltaID, err := a.eng.AddOverrideDelta(ctx, a.actor, id, key, amount, args[3])
	if err != nil {
		return err
	}
	fmt.Println("delta id:", deltaID)
	return nil
}

func (a *app) audit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("audit needs a name")
	}
	id, err := a.resolveID(ctx, args[0])
	if err != nil {
		return err
	}
	facts, err := a.db.RecentFacts(ctx, id, a.auditLimit)
	if err != nil {
		return err
	}
	for _, f := range facts {
		fmt.Printf("%s  %-22s %-10s %s\n", f.At.Format(time.RFC3339), f.Action, f.ActorName, f.Detail)
	}
	return nil
}

// parseKey turns the CLI's key syntax into an override key. Only keys a
// game master would pin by hand are supported here.
func parseKey(s string) (override.Key, error) {
	return override.ParseKey(s)
}
