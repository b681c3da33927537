/*
Package sdt reads and writes the STAF data-type marshalling format, the
self-describing text encoding whose units all start with "@SDT/". The
library's API is designed to be familiar to Go developers, closely mirroring
the standard `encoding/json` package.

The data model is a small closed set of values: None, Scalar (opaque text),
List, Map (ordered string keys) and Instance (a map tagged with the name of
a map class). A Context holds a root value together with the map classes its
instances refer to. Map classes are written once per context, so repeated
records of the same shape travel as bare values.

The package offers two workflows.

1. Working with the data model

Build values directly and marshal a Context:

	mc := sdt.NewMapClass("Test/MyMap").
		AddKey("name", "Name").
		AddKey("exec", "Executable")

	inst := mc.NewInstance()
	inst.Set("name", sdt.Scalar("TestA"))
	inst.Set("exec", sdt.Scalar("/tests/TestA.py"))

	c := sdt.NewContextWithRoot(sdt.List{inst})
	c.SetMapClass(mc)

	data, err := sdt.Marshal(c)
	if err != nil {
		// handle error
	}

Unmarshal never fails. Input that is not well formed comes back as the
literal text it was given, either for the whole input or only for the
nested unit that was damaged:

	c := sdt.Unmarshal(data)
	fmt.Println(c) // the formatted report, using display names

A Scalar whose text is itself marshalled data is decoded as the value that
text describes, so it does not come back as the same Scalar. Pass
IgnoreIndirectObjects to Unmarshal to keep such Scalars unchanged.

2. Working with Go values

Marshal accepts ordinary Go values as well, and Unpack fills them back in:

	type Test struct {
		Name string `sdt:"name"`
		Exec string `sdt:"exec,omitempty"`
	}

	data, err := sdt.Marshal([]Test{{Name: "TestA", Exec: "/tests/TestA.py"}})
	...
	var tests []Test
	if err := sdt.Unmarshal(data).Unpack(&tests); err != nil {
		// handle error
	}

Customization is available via struct field tags and by implementing the
sdt.Marshaler and sdt.Unmarshaler interfaces.
*/
package sdt
