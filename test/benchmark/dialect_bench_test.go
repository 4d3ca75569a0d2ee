package benchmark

import "testing"

func BenchmarkParse(b *testing.B) {
	p, _ := newCompiler(b, newRegistry(b))
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := p.Parse(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	p, c := newCompiler(b, newRegistry(b))
	for _, q := range queries {
		tree, err := p.Parse(q.query)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := c.Compile(tree); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
