// Command nerankage hand-assembles a tiny program and runs it to
// completion, printing the resulting register and heap statistics.
// It exists so the interpreter has one exercised, compiled entry
// point outside the test suite; it is not a loader for any real
// bytecode file format, since none is in scope.
package main

import (
	"flag"
	"log"

	"github.com/pkg/errors"

	"github.com/w41ter/Nerankage/vm"
)

func main() {
	arenaBytes := flag.Int("arena", vm.DefaultArenaBytes, "heap arena size in bytes")
	flag.Parse()

	if err := run(uint32(*arenaBytes)); err != nil {
		log.Fatalf("nerankage: %+v", err)
	}
}

// run builds a program equivalent to:
//
//	greet()
//	r2 = 6 * 7
//	halt
//
// where greet is a host-provided closure, to exercise the loader's
// user-closure registration path alongside ordinary bytecode
// arithmetic.
func run(arenaBytes uint32) error {
	var code []byte
	code = append(code, vm.EncodeABx(vm.OpNewUserClosure, 0, 0)...)
	code = append(code, vm.EncodeABC(vm.OpPush, 0, 0, 0)...)
	code = append(code, vm.EncodeABC(vm.OpCall, 0, 0, 0)...)
	code = append(code, vm.EncodeABx(vm.OpMoveI, 0, 0)...)
	code = append(code, vm.EncodeABx(vm.OpMoveI, 1, 1)...)
	code = append(code, vm.EncodeABC(vm.OpMul, 2, 0, 1)...)
	code = append(code, vm.EncodeABC(vm.OpHalt, 0, 0, 0)...)

	s := vm.NewStateWithArena(code, arenaBytes)
	s.RegisterUserClosure("greet", greet)
	s.RegisterInt(6)
	s.RegisterInt(7)

	protoIdx := s.RegisterPrototype(0, uint32(len(code)), 0, false, nil)
	closureIdx := s.RegisterClosure(protoIdx, nil)

	sc := s.NewScene()
	defer s.CloseScene(sc)

	if err := sc.Execute(s.Closure(closureIdx)); err != nil {
		return errors.Wrap(err, "execute")
	}

	result := sc.Result(2)
	log.Printf("r2 = %s", result)

	stats := s.Heap.Stats()
	log.Printf("heap: young=%d/%d old=%d/%d minorGCs=%d majorGCs=%d",
		stats.YoungUsed, stats.YoungCap, stats.OldUsed, stats.OldCap,
		stats.MinorCollections, stats.MajorCollections)
	return nil
}

// greet is the one host-provided closure the example registers. It
// reads no arguments and writes no result - a UserClosure call never
// copies anything back into the caller's window, so a host function
// that needs to communicate a value back has to do it through a
// global or a heap-resident out parameter, not the call return path.
func greet(scene any, begin, end, numParams uint8) {
	_ = scene
	log.Printf("greet: called with window [%d,%d), %d params", begin, end, numParams)
}
