package cli

const usage = `Usage:
  stripgate build [ENTRY...] [--root PATH] [--config PATH] [--mode production|development] [--outdir DIR]
                  [--format esm|cjs|iife] [--platform browser|node|neutral] [--sourcemap] [--minify]
                  [--force-sourcemap=false] [--apply-in-dev] [--no-write] [--report table|json] [--verbose]
  stripgate strip FILE [--root PATH] [--config PATH] [--mode production|development] [--inline-map] [--verbose]

Options:
  --root PATH             Project root (default: .)
  --config PATH           Config file (default: .stripgate.yml, .stripgate.yaml, stripgate.json or stripgate.toml in root)
  --mode MODE             Build mode (default: production)
  --outdir DIR            Output directory relative to root (default: dist)
  --format FORMAT         Output module format (default: esm)
  --platform PLATFORM     Target platform (default: browser)
  --sourcemap             Write source maps next to outputs
  --force-sourcemap       Generate maps for verification even without --sourcemap (default: true)
  --apply-in-dev          Strip and verify in non-production builds
  --minify                Minify output
  --no-write              Build and verify without writing outputs
  --report FORMAT         Report format: table or json (default: table)
  --inline-map            Append an inline source map to stripped output
  --verbose               Log strip decisions to stderr
  -h, --help              Show this help text

Exit codes:
  0 success, 1 error, 2 usage error, 3 verification failed
`

func Usage() string {
	return usage
}
