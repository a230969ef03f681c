/*
Package pipeline drives one plugin build from source checkout to prebuilts.

	 +------+   +---------+   +-------+   +--------+   +---------+
	 | sync |-->| rewrite |-->| build |-->| gather |-->| publish |
	 +------+   +---------+   +-------+   +--------+   +----+----+
	                                          ^             |
	                          +----------+    |        +----+-----+
	                          | download |----+        | metadata |
	                          +----------+             | library  |
	                                                   +----------+

🎯 Purpose:
- Mirrors the plugin sources into a staging tree and patches them
- Runs each configured build step with an exact environment
- Publishes the outputs into the prebuilts tree, or copies them to a
  staging directory when one is given

Every phase fails fast. Nothing after a failed phase runs.
*/
package pipeline
