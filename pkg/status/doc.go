/*
Package status turns pipeline results into console output for stagerc.

	            +-------------+
	            |   Status    |
	            |  (Console)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|  Sync    | | Rewrite  | | Progress |
	| Entries  | | Results  | |   Bar    |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Maps staging decisions and rewrite results onto log.FileOperation
- Shows a progress bar while the staging tree is copied
- Prints one summary line per phase

Per-file lines are only printed for files that changed, unless verbose
output is requested. A full checkout has tens of thousands of files.

🔍 Example:

	bar := status.NewProgressBar(os.Stderr, "staging")
	report, err := stage.Synchronize(ctx, stage.Options{..., Progress: bar})
	status.PrintSyncReport(os.Stderr, report)
*/
package status
