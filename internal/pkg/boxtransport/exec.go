package boxtransport

import (
	"context"
	"fmt"

	"mvdan.cc/sh/v3/shell"
)

// TokenizeCommand splits cmd shell-style (field splitting, quoting, glob
// expansion left to the shell package), matching original_source/
// app.cpp's App::exec() wordexp(3) call and C3's desktop-entry Exec
// tokenization for consistency across the two components.
func TokenizeCommand(cmd string) ([]string, error) {
	fields, err := shell.Fields(cmd, nil)
	if err != nil {
		return nil, fmt.Errorf("tokenizing command: %w", err)
	}
	return fields, nil
}

// ExecCommand tokenizes cmd and envCSV (a comma-separated KEY=VALUE list,
// matching App::exec(QString cmd, QString env, QString cwd)'s env.split(',')),
// and injects the resulting Process frame via Exec.
func (s *Session) ExecCommand(ctx context.Context, cmd, envCSV, cwd string) error {
	args, err := TokenizeCommand(cmd)
	if err != nil {
		return err
	}

	return s.Exec(ctx, args, splitEnvCSV(envCSV), cwd)
}

// splitEnvCSV splits a comma-separated KEY=VALUE list (App::exec's
// env.split(',') in original_source/app.cpp), skipping empty fields.
func splitEnvCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
