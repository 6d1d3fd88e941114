/*
Package cli holds helpers shared by the carpool commands.

Output Formatting:

Commands print results as text, JSON or CSV. Results that implement
Tabular render as aligned columns in text mode and are the only ones that
support CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, decision); err != nil {
		return err
	}

Progress Reporting:

Chain verification over a large range reports progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "entries")
	progress.Start(tail)
	progress.Update(checked)
	progress.Finish()

Errors and Exit Codes:

ExitCode maps command errors onto distinct exit codes so scripts can tell
a broken chain or an overdraft from a generic failure.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
