package main

import (
	"context"
	"flag"
	"fmt"

	"videomass/display"
	vmerrors "videomass/internal/errors"
	"videomass/models"
)

const presetsUsage = `usage: videomass presets COMMAND [FLAGS] [ARGS]

  list                                 List preset files and their profile counts
  show PRESET [PROFILE]                Show the profiles of a preset, or one profile
  add [profile flags] PRESET           Add a profile to a preset
  update [profile flags] PRESET NAME   Change a profile; unset flags keep their value
  delete PRESET NAME                   Delete a profile
  create PRESET                        Create an empty preset file
  remove PRESET                        Delete a preset file
  export PRESET DEST                   Copy a preset file to DEST (file or directory)
  import [-overwrite] FILE             Copy a .prst file into the presets directory
  restore [-overwrite]                 Reinstall the built-in presets
  watch                                Report preset file changes until interrupted

profile flags: -name, -description, -first-pass, -second-pass, -supported, -ext
`

func (a *app) presetsUsage() error {
	fmt.Fprint(a.stderr, presetsUsage)
	return errUsage
}

func (a *app) presetsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.presetsUsage()
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		return a.presetsList()
	case "show":
		return a.presetsShow(args)
	case "add":
		return a.presetsAdd(args)
	case "update":
		return a.presetsUpdate(args)
	case "delete":
		if len(args) != 2 {
			return a.presetsUsage()
		}
		if err := a.store.DeleteProfile(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.Success("deleted profile %q from %s", args[1], args[0]))
		return nil
	case "create":
		if len(args) != 1 {
			return a.presetsUsage()
		}
		if err := a.store.Create(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.Success("created %s", a.store.Path(args[0])))
		return nil
	case "remove":
		if len(args) != 1 {
			return a.presetsUsage()
		}
		if err := a.store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.Success("removed preset %s", args[0]))
		return nil
	case "export":
		if len(args) != 2 {
			return a.presetsUsage()
		}
		dst, err := a.store.Export(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.Success("exported %s to %s", args[0], dst))
		return nil
	case "import":
		return a.presetsImport(args)
	case "restore":
		return a.presetsRestore(args)
	case "watch":
		return a.presetsWatch(ctx)
	default:
		fmt.Fprintf(a.stderr, "unknown presets command %q\n\n", sub)
		return a.presetsUsage()
	}
}

func (a *app) presetsList() error {
	if err := a.ensurePresets(); err != nil {
		return err
	}
	names, err := a.store.List()
	if err != nil {
		return err
	}
	counts := make(map[string]int, len(names))
	for _, name := range names {
		profiles, err := a.store.Load(name)
		if err != nil {
			a.log.Warn("unreadable preset", "preset", name, "error", err)
			counts[name] = -1
			continue
		}
		counts[name] = len(profiles)
	}
	fmt.Fprintln(a.stdout, display.PresetsTable(names, counts))
	return nil
}

func (a *app) presetsShow(args []string) error {
	switch len(args) {
	case 1:
		if err := a.ensurePresets(); err != nil {
			return err
		}
		profiles, err := a.store.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.Banner(args[0]))
		fmt.Fprintln(a.stdout, display.ProfilesTable(profiles))
		return nil
	case 2:
		if err := a.ensurePresets(); err != nil {
			return err
		}
		p, err := a.store.Profile(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, display.ProfileDetail(*p))
		return nil
	default:
		return a.presetsUsage()
	}
}

// profileFlags registers the profile fields on fs, defaulting to p.
func profileFlags(fs *flag.FlagSet, p *models.Profile) {
	fs.StringVar(&p.Name, "name", p.Name, "Profile name")
	fs.StringVar(&p.Description, "description", p.Description, "Profile description")
	fs.StringVar(&p.FirstPass, "first-pass", p.FirstPass, "ffmpeg options of the (first) pass")
	fs.StringVar(&p.SecondPass, "second-pass", p.SecondPass, "ffmpeg options of the second pass, empty for one pass")
	fs.StringVar(&p.SupportedList, "supported", p.SupportedList, "Space separated input extensions, empty for all")
	fs.StringVar(&p.OutputExtension, "ext", p.OutputExtension, "Output extension")
}

func (a *app) presetsAdd(args []string) error {
	var p models.Profile
	fs := flag.NewFlagSet("presets add", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	profileFlags(fs, &p)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return a.presetsUsage()
	}
	preset := fs.Arg(0)
	if err := a.store.AddProfile(preset, p); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, display.Success("added profile %q to %s", p.Name, preset))
	return nil
}

// presetsUpdate needs the preset and profile names before the flags can
// default to the current values, so they are read from the end of args.
func (a *app) presetsUpdate(args []string) error {
	if len(args) < 2 {
		return a.presetsUsage()
	}
	preset, name := args[len(args)-2], args[len(args)-1]
	current, err := a.store.Profile(preset, name)
	if err != nil {
		return err
	}

	p := *current
	fs := flag.NewFlagSet("presets update", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	profileFlags(fs, &p)
	if err := fs.Parse(args[:len(args)-2]); err != nil {
		return errUsage
	}
	if fs.NArg() != 0 {
		return a.presetsUsage()
	}
	if p == *current {
		return vmerrors.Validation("nothing to update: no profile flag changes %q", name)
	}
	if err := a.store.UpdateProfile(preset, name, p); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, display.Success("updated profile %q in %s", p.Name, preset))
	return nil
}

func (a *app) presetsImport(args []string) error {
	fs := flag.NewFlagSet("presets import", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	overwrite := fs.Bool("overwrite", a.cfg.Overwrite, "Replace a preset with the same name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return a.presetsUsage()
	}
	name, err := a.store.Import(fs.Arg(0), *overwrite)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, display.Success("imported preset %s", name))
	return nil
}

func (a *app) presetsRestore(args []string) error {
	fs := flag.NewFlagSet("presets restore", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	overwrite := fs.Bool("overwrite", false, "Replace presets that already exist")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	restored, err := a.store.RestoreDefaults(*overwrite)
	if err != nil {
		return err
	}
	if len(restored) == 0 {
		fmt.Fprintln(a.stdout, display.Dim("all built-in presets are already installed (use -overwrite to reset them)"))
		return nil
	}
	for _, name := range restored {
		fmt.Fprintln(a.stdout, display.Success("restored %s", name))
	}
	return nil
}

// presetsWatch blocks until ctx is canceled. An interrupt is the normal way
// to stop it, so cancellation is not reported as an error.
func (a *app) presetsWatch(ctx context.Context) error {
	if err := a.ensurePresets(); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, display.Dim("watching "+a.store.Dir+" (Ctrl+C to stop)"))
	err := a.store.Watch(ctx, a.bus, func(path string) {
		fmt.Fprintln(a.stdout, display.Warning("changed: %s", path))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
