package main

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/andrewchambers/cdecl/config"
	"github.com/andrewchambers/cdecl/cpp"
	"github.com/andrewchambers/cdecl/internal/log"
	"github.com/andrewchambers/cdecl/parse"
)

// parseFiles parses every path concurrently. The results are in the order
// of paths, and when several files fail the error of the first is returned.
func parseFiles(cfg *config.Config, paths []string) ([]*parse.TranslationUnit, error) {
	tus := make([]*parse.TranslationUnit, len(paths))
	errs := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	start := time.Now()
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			tus[i], errs[i] = parseFile(cfg, path)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	log.Infof("Parsed %d files in %v", len(paths), time.Since(start))
	return tus, nil
}

func parseFile(cfg *config.Config, path string) (*parse.TranslationUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening source file")
	}
	defer f.Close()

	var is cpp.IncludeSearcher
	if cfg.FollowIncludes {
		is = cpp.NewStandardIncludeSearcher(cfg.IncludePaths...)
	}
	pp := cpp.New(cpp.Lex(path, f), is)
	pp.Warn = func(pos cpp.FilePos, msg string) {
		log.Warningf("%s: %s", pos, msg)
	}
	names := make([]string, 0, len(cfg.Defines))
	for name := range cfg.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := pp.Define(name, cfg.Defines[name]); err != nil {
			return nil, errors.Wrapf(err, "defining %s", name)
		}
	}
	tu, err := parse.Parse(pp)
	if err != nil {
		return nil, err
	}
	log.Infof("%s: %d structs, %d typedefs, %d enums, %d functions, %d globals", path,
		len(tu.Structs), len(tu.Typedefs), len(tu.Enums), len(tu.Functions), len(tu.Globals))
	return tu, nil
}
