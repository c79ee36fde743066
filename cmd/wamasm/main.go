package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/wam"
)

var (
	inputFilename  = flag.String("input", "", "Input file (required)")
	outputFilename = flag.String("output", "", "Output file for the normalized assembly")
)

func main() {
	flag.Parse()
	if *inputFilename == "" {
		log.Fatalf("-input is required")
	}
	input, err := os.Open(*inputFilename)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer input.Close()
	p, err := asm.Parse(input)
	if err != nil {
		log.Fatalf("%s: %v", *inputFilename, err)
	}
	fmt.Print(asm.Listing(p))
	fmt.Println()
	printSymbols(p)
	if *outputFilename == "" {
		return
	}
	output, err := os.Create(*outputFilename)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer output.Close()
	if err := asm.Format(output, p); err != nil {
		log.Fatalf("output: %v", err)
	}
}

func printSymbols(p *wam.Program) {
	for _, name := range p.Procedures() {
		addrs := make([]string, len(p.Symbols[name]))
		for i, addr := range p.Symbols[name] {
			addrs[i] = fmt.Sprint(addr)
		}
		fmt.Printf("%v\t%s\n", wam.Constant{Name: name}, strings.Join(addrs, ", "))
	}
}
