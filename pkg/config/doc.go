/*
Package config loads the pipeline description for stagerc.

	            +-------------+
	            |   Config    |
	            | (Pipeline)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   HCL    | |   YAML   | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Reads one config file per plugin (.stagerc.hcl, .yaml, .yml, .json)
- Resolves every relative path against the workspace root
- Derives JAVA_HOME for the host from the jdk block

🌍 Variables:

Every format can reference the same variables. HCL uses native
interpolation, YAML and JSON get ${name} expansion after decoding.

	workspace   absolute workspace root
	os, arch    host platform (GOOS / GOARCH spelling)
	java_home   only when a jdk block is present

HCL additionally exposes format, join, lower, upper and replace.

🔍 Example:

	name = "rust-plugin"

	jdk {
	  base = "prebuilts/studio/jdk/jdk17"
	}

	sync {
	  source      = "external/jetbrains/intellij-rust"
	  destination = "out/staging/rust"
	  ignore_file = "tools/rust-plugin/ignore.txt"
	}

	rewrite {
	  search  = "allow-bundled-update=\"true\""
	  replace = "allow-bundled-update=\"false\""
	  filter  = "*.xml"
	  literal = true
	}

	step "gradle" {
	  description = "Building the Rust IDE Plugin"
	  args        = ["out/staging/rust/gradlew", "--parallel", "buildPlugin"]
	  dir         = "out/staging/rust"
	  clean_args  = ["clean"]
	}
*/
package config
