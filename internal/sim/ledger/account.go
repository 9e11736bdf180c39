package ledger

import "strings"

// Account identifies a principal. The empty string is the null account.
type Account string

const Null Account = ""

func ParseAccount(s string) Account { return Account(strings.TrimSpace(s)) }

func (a Account) IsNull() bool { return a == Null }

func (a Account) String() string { return string(a) }
