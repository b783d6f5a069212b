package main

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
)

// opFlags carries the optional parts of an operation.
type opFlags struct {
	actor     string
	timestamp int64
}

// parseOp builds an operation from "<type> <key> <verb> [args...]".
func parseOp(args []string, f opFlags) (gindex.Op, error) {
	if len(args) < 3 {
		return gindex.Op{}, errors.New("expected <type> <key> <verb> [args...]")
	}
	typ, key, verb, rest := crdt.TypeID(args[0]), args[1], args[2], args[3:]

	var op crdt.Op
	var err error
	switch verb {
	case "assign":
		if len(rest) != 1 {
			return gindex.Op{}, errors.New("assign takes one value")
		}
		op = crdt.Assign{Value: crdt.ParseValue(rest[0]), Timestamp: f.timestamp}
	case "increment", "decrement":
		var by int64
		if by, err = amount(rest, 1); err != nil {
			return gindex.Op{}, err
		}
		if verb == "increment" {
			op = crdt.Increment{By: by, Actor: f.actor}
		} else {
			op = crdt.Decrement{By: by, Actor: f.actor}
		}
	case "transfer":
		if len(rest) != 2 {
			return gindex.Op{}, errors.New("transfer takes an amount and a target actor")
		}
		var by int64
		if by, err = amount(rest[:1], 1); err != nil {
			return gindex.Op{}, err
		}
		op = crdt.Transfer{By: by, To: rest[1], Actor: f.actor}
	case "add":
		if len(rest) == 0 {
			return gindex.Op{}, errors.New("add takes at least one element")
		}
		elems := make([]crdt.Value, 0, len(rest))
		for _, s := range rest {
			elems = append(elems, crdt.ParseValue(s))
		}
		op = crdt.Add{Elems: elems}
	default:
		return gindex.Op{}, errors.Errorf("unknown verb %q", verb)
	}

	return gindex.Op{Type: typ, Key: key, Op: op}, nil
}

// amount parses the single optional amount in args.
func amount(args []string, def int64) (int64, error) {
	switch len(args) {
	case 0:
		return def, nil
	case 1:
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "amount %q", args[0])
		}
		return n, nil
	}
	return 0, errors.New("too many arguments")
}
