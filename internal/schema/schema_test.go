package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

func TestParseAttributeTypeDefinition(t *testing.T) {
	at, err := ParseAttributeTypeDefinition(
		`( 2.5.4.3 NAME ( 'cn' 'commonName' ) DESC 'Common name' SUP name )`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if at.OID != "2.5.4.3" || at.Name != "cn" || !reflect.DeepEqual(at.Names, []string{"cn", "commonName"}) {
		t.Errorf("naming fields: %+v", at)
	}
	if at.Desc != "Common name" || at.Superior != "name" {
		t.Errorf("desc/sup: %+v", at)
	}

	full, err := ParseAttributeTypeDefinition(
		`( 1.3.6.1.1.1.1.0 NAME 'uidNumber' EQUALITY integerMatch SYNTAX 1.3.6.1.4.1.1466.115.121.1.27{10} SINGLE-VALUE NO-USER-MODIFICATION USAGE directoryOperation )`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if full.Equality != "integerMatch" || full.Syntax != "1.3.6.1.4.1.1466.115.121.1.27" {
		t.Errorf("equality/syntax (length bound must be stripped): %+v", full)
	}
	if !full.SingleValue || !full.NoUserMod || full.Usage != DirectoryOperation {
		t.Errorf("flags: %+v", full)
	}

	for _, bad := range []string{"", "2.5.4.3 NAME 'cn'", "( )", "( 2.5.4.3 NAME 'unterminated )"} {
		if _, err := ParseAttributeTypeDefinition(bad); err == nil {
			t.Errorf("accepted invalid definition %q", bad)
		}
	}
}

func TestParseObjectClassDefinition(t *testing.T) {
	oc, err := ParseObjectClassDefinition(
		`( 2.5.6.6 NAME 'person' SUP top STRUCTURAL MUST ( sn $ cn ) MAY ( userPassword $ description ) )`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if oc.OID != "2.5.6.6" || oc.Name != "person" || oc.Superior != "top" {
		t.Errorf("identity fields: %+v", oc)
	}
	if oc.Kind != ObjectClassStructural {
		t.Errorf("kind = %v", oc.Kind)
	}
	if !reflect.DeepEqual(oc.Must, []string{"sn", "cn"}) {
		t.Errorf("must = %v", oc.Must)
	}
	if !reflect.DeepEqual(oc.May, []string{"userPassword", "description"}) {
		t.Errorf("may = %v", oc.May)
	}

	aux, err := ParseObjectClassDefinition(`( 1.3.6.1.1.1.2.0 NAME 'posixAccount' SUP top AUXILIARY MUST uid )`)
	if err != nil || aux.Kind != ObjectClassAuxiliary || !reflect.DeepEqual(aux.Must, []string{"uid"}) {
		t.Errorf("auxiliary single-must: %+v err=%v", aux, err)
	}
}

func TestRegistrationIdempotenceAndConflict(t *testing.T) {
	s := NewSchema()
	def := `( 2.5.4.13 NAME 'description' EQUALITY caseIgnoreMatch SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )`

	if err := s.RegisterAttributeType(def); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	// Identical re-registration (whitespace differences included) is a
	// no-op.
	if err := s.RegisterAttributeType("  " + strings.ReplaceAll(def, " ", "  ")); err != nil {
		t.Fatalf("idempotent re-registration: %v", err)
	}
	// Same OID, different definition conflicts.
	err := s.RegisterAttributeType(`( 2.5.4.13 NAME 'description' EQUALITY caseExactMatch SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )`)
	var conflict *oerrors.SchemaConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("redefinition err = %v, want SchemaConflict", err)
	}
	// Same name under a different OID conflicts too.
	err = s.RegisterAttributeType(`( 9.9.9 NAME 'description' SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )`)
	if !errors.As(err, &conflict) {
		t.Fatalf("name reuse err = %v, want SchemaConflict", err)
	}

	if err := s.RegisterObjectClass(`( 2.5.6.6 NAME 'person' SUP top STRUCTURAL MUST cn )`); err != nil {
		t.Fatalf("object class registration: %v", err)
	}
	err = s.RegisterObjectClass(`( 2.5.6.6 NAME 'person' SUP top STRUCTURAL MUST sn )`)
	if !errors.As(err, &conflict) {
		t.Fatalf("object class redefinition err = %v, want SchemaConflict", err)
	}
}

func TestDefaultSchemaInheritance(t *testing.T) {
	s := LoadDefaultSchema()

	// cn declares no EQUALITY of its own; it inherits caseIgnoreMatch
	// from name via SUP.
	cn := s.GetAttributeType("cn")
	if cn == nil {
		t.Fatal("cn not in default schema")
	}
	if cn.Equality != "caseIgnoreMatch" {
		t.Errorf("cn equality = %q, want inherited caseIgnoreMatch", cn.Equality)
	}
	if got := s.GetEffectiveSyntax("commonName"); got != SyntaxDirectoryString {
		t.Errorf("effective syntax via alias = %q", got)
	}

	// inetOrgPerson's MUST set accumulates through person and top.
	must := s.GetAllMustAttributes("inetOrgPerson")
	for _, want := range []string{"objectClass", "sn", "cn"} {
		found := false
		for _, m := range must {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Errorf("inherited MUST missing %q: %v", want, must)
		}
	}

	// Lookups accept any alias case-insensitively.
	if s.GetAttributeType("COMMONNAME") == nil {
		t.Error("alias lookup is not case-insensitive")
	}
	if s.GetObjectClass("POSIXACCOUNT") == nil {
		t.Error("object class lookup is not case-insensitive")
	}
}

func TestLoadSchemaFromLDIF(t *testing.T) {
	ldif := `dn: cn=schema
objectClass: subschema
attributeTypes: ( 1.2.3.4 NAME 'favoriteDrink'
  EQUALITY caseIgnoreMatch
  SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )
objectClasses: ( 1.2.3.5 NAME 'cafePatron' SUP top AUXILIARY
  MAY favoriteDrink )
ldapSyntaxes: ( 1.3.6.1.4.1.1466.115.121.1.15 DESC 'Directory String' )
matchingRules: ( 2.5.13.2 NAME 'caseIgnoreMatch' SYNTAX 1.3.6.1.4.1.1466.115.121.1.15 )
`
	s, err := LoadSchemaFromLDIF(strings.NewReader(ldif))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	at := s.GetAttributeType("favoriteDrink")
	if at == nil || at.Equality != "caseIgnoreMatch" {
		t.Errorf("continuation-line attribute type: %+v", at)
	}
	oc := s.GetObjectClass("cafePatron")
	if oc == nil || !reflect.DeepEqual(oc.May, []string{"favoriteDrink"}) {
		t.Errorf("object class: %+v", oc)
	}
	if s.GetMatchingRule("caseIgnoreMatch") == nil || s.GetSyntax(SyntaxDirectoryString) == nil {
		t.Error("matching rule or syntax missing")
	}

	if _, err := LoadSchemaFromLDIF(strings.NewReader("attributeTypes: ( broken")); err == nil {
		t.Error("malformed definition accepted")
	}
}

func TestPrepPipeline(t *testing.T) {
	// Case folding, width folding, and space collapsing all feed the
	// same prepared form.
	pairs := [][2]string{
		{"Foo Bar", "foo  BAR"},
		{"  spaced  out  ", "spaced out"},
		{"ＦＵＬＬ", "full"}, // fullwidth compatibility characters
	}
	for _, p := range pairs {
		if string(Prepare([]byte(p[0]))) != string(Prepare([]byte(p[1]))) {
			t.Errorf("Prepare(%q) != Prepare(%q)", p[0], p[1])
		}
	}

	// Case-exact prep keeps case but still collapses spaces.
	if string(PrepareCaseExact([]byte("A  B"))) != string(PrepareCaseExact([]byte("A B"))) {
		t.Error("case-exact prep did not collapse spaces")
	}
	if string(PrepareCaseExact([]byte("ab"))) == string(PrepareCaseExact([]byte("AB"))) {
		t.Error("case-exact prep folded case")
	}

	// Control characters are stripped.
	if string(Prepare([]byte("a\x00b"))) != string(Prepare([]byte("ab"))) {
		t.Error("prohibited code point survived preparation")
	}
}

func TestEqualityDispatch(t *testing.T) {
	s := LoadDefaultSchema()

	if !EqualForAttribute(s, "cn", []byte("Foo Bar"), []byte("foo  BAR")) {
		t.Error("caseIgnoreMatch values not equal after preparation")
	}
	if EqualForAttribute(s, "homeDirectory", []byte("/home/a"), []byte("/HOME/A")) {
		t.Error("caseExactIA5Match ignored case")
	}
	// Unknown attribute types degrade to octet equality.
	if !EqualForAttribute(s, "noSuchAttr", []byte("x"), []byte("x")) {
		t.Error("octet-equal values of unknown attribute not equal")
	}
	if EqualForAttribute(s, "noSuchAttr", []byte("x"), []byte("X")) {
		t.Error("unknown attribute compared case-insensitively")
	}
	// A nil schema is pure octet equality.
	if !EqualForAttribute(nil, "cn", []byte("a"), []byte("a")) || EqualForAttribute(nil, "cn", []byte("a"), []byte("A")) {
		t.Error("nil-schema comparison not octet equality")
	}
}

func TestValidateEntry(t *testing.T) {
	s := LoadDefaultSchema()

	// A well-formed posixAccount entry: no warnings, no error.
	warnings, err := s.ValidateEntry(map[string][][]byte{
		"objectClass":   {[]byte("top"), []byte("account"), []byte("posixAccount")},
		"uid":           {[]byte("alice")},
		"cn":            {[]byte("Alice")},
		"uidNumber":     {[]byte("1000")},
		"gidNumber":     {[]byte("1000")},
		"homeDirectory": {[]byte("/home/alice")},
	})
	if err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("valid entry warned: %v", warnings)
	}

	// Unknown elements warn but do not fail.
	warnings, err = s.ValidateEntry(map[string][][]byte{
		"objectClass":  {[]byte("futuristicThing")},
		"unknownAttr":  {[]byte("x")},
	})
	if err != nil {
		t.Fatalf("unknown elements must not error: %v", err)
	}
	if len(warnings) < 2 {
		t.Errorf("expected unknown-class and unknown-attribute warnings, got %v", warnings)
	}

	// Single-value violation fails locally.
	_, err = s.ValidateEntry(map[string][][]byte{
		"objectClass": {[]byte("top")},
		"uidNumber":   {[]byte("1"), []byte("2")},
	})
	var invalid *oerrors.InvalidValue
	if !errors.As(err, &invalid) {
		t.Fatalf("single-value violation err = %v, want InvalidValue", err)
	}

	// Syntax violation fails locally.
	_, err = s.ValidateEntry(map[string][][]byte{
		"objectClass": {[]byte("top")},
		"gidNumber":   {[]byte("not-a-number")},
	})
	var badSyntax *oerrors.InvalidSyntaxError
	if !errors.As(err, &badSyntax) {
		t.Fatalf("syntax violation err = %v, want InvalidSyntaxError", err)
	}
}

func TestSyntaxValidators(t *testing.T) {
	cases := []struct {
		oid   string
		good  []string
		bad   []string
	}{
		{SyntaxInteger, []string{"0", "42", "-7", "+9"}, []string{"", "-", "4a"}},
		{SyntaxBoolean, []string{"TRUE", "FALSE"}, []string{"true", "yes", ""}},
		{SyntaxIA5String, []string{"ascii only"}, []string{"käse"}},
		{SyntaxNumericString, []string{"123 456"}, []string{"12a"}},
		{SyntaxTelephoneNumber, []string{"+1 (555) 123-4567"}, []string{"", "ext#5"}},
	}
	s := LoadDefaultSchema()
	for _, c := range cases {
		syn := s.GetSyntax(c.oid)
		if syn == nil || syn.Validator == nil {
			t.Errorf("syntax %s has no validator attached", c.oid)
			continue
		}
		for _, v := range c.good {
			if !syn.Validate([]byte(v)) {
				t.Errorf("syntax %s rejected %q", c.oid, v)
			}
		}
		for _, v := range c.bad {
			if syn.Validate([]byte(v)) {
				t.Errorf("syntax %s accepted %q", c.oid, v)
			}
		}
	}
}
