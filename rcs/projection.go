package rcs

import (
	"strings"

	"github.com/chris-pikul/contacts-rcs/db"
)

//ColumnLocalPhotoSet flags raw contacts whose photo was set on the device
const ColumnLocalPhotoSet = "local_photo_setted"

const addColumnSQL = "ALTER TABLE " + db.TableRawContacts + " ADD COLUMN " + ColumnLocalPhotoSet + " INTEGER NOT NULL DEFAULT 0"

const createTableSQL = "CREATE TABLE " + db.TableRawContacts + " (" + db.RawContactsColumns + ",\n\t" +
	ColumnLocalPhotoSet + " INTEGER NOT NULL DEFAULT 0\n)"

var nameColumns = []string{
	"raw_contacts._id AS _id",
	"contact_id",
	"aggregation_mode",
	"raw_contact_is_read_only",
	"deleted",
	"display_name_source",
	"display_name",
	"display_name_alt",
	"phonetic_name",
	"phonetic_name_style",
	"sort_key",
	"phonebook_label",
	"phonebook_bucket",
	"sort_key_alt",
	"phonebook_label_alt",
	"phonebook_bucket_alt",
}

//raw contacts are never profile rows in this database
const userProfileColumn = "0 AS raw_contact_is_user_profile"

var optionColumns = []string{
	"custom_ringtone",
	"send_to_voicemail",
	"last_time_contacted",
	"times_contacted",
	"starred",
	"pinned",
}

var syncColumns = []string{
	"raw_contacts.account_id",
	"accounts.account_name AS account_name",
	"accounts.account_type AS account_type",
	"accounts.data_set AS data_set",
	"(CASE WHEN accounts.data_set IS NULL THEN accounts.account_type" +
		" ELSE accounts.account_type||'/'||accounts.data_set END) AS account_type_and_data_set",
	"raw_contacts.sourceid AS sourceid",
	"raw_contacts.backup_id AS backup_id",
	"raw_contacts.version AS version",
	"raw_contacts.dirty AS dirty",
	"raw_contacts.sync1 AS sync1",
	"raw_contacts.sync2 AS sync2",
	"raw_contacts.sync3 AS sync3",
	"raw_contacts.sync4 AS sync4",
}

//rawContactsSelect builds the view body. The RCS variant carries the
//local photo flag right after the name columns
func rawContactsSelect(rcsEnabled bool) string {
	cols := make([]string, 0, len(nameColumns)+len(optionColumns)+len(syncColumns)+2)
	cols = append(cols, nameColumns...)
	if rcsEnabled {
		cols = append(cols, ColumnLocalPhotoSet)
	}
	cols = append(cols, userProfileColumn)
	cols = append(cols, optionColumns...)
	cols = append(cols, syncColumns...)

	return "SELECT " + strings.Join(cols, ", ") +
		" FROM raw_contacts JOIN accounts ON (raw_contacts.account_id=accounts._id)"
}

//Projection lists the columns the provider exposes when querying raw
//contacts through the view. With RCS enabled the local photo flag is
//appended
func Projection(rcsEnabled bool) []string {
	p := []string{
		"_id",
		"contact_id",
		"deleted",
		"display_name",
		"display_name_alt",
		"display_name_source",
		"phonetic_name",
		"phonetic_name_style",
		"sort_key",
		"sort_key_alt",
		"phonebook_label",
		"phonebook_bucket",
		"phonebook_label_alt",
		"phonebook_bucket_alt",
		"times_contacted",
		"last_time_contacted",
		"custom_ringtone",
		"send_to_voicemail",
		"starred",
		"pinned",
		"aggregation_mode",
		"raw_contact_is_user_profile",
		"account_name",
		"account_type",
		"data_set",
		"account_type_and_data_set",
		"dirty",
		"sourceid",
		"backup_id",
		"version",
		"sync1",
		"sync2",
		"sync3",
		"sync4",
	}
	if rcsEnabled {
		p = append(p, ColumnLocalPhotoSet)
	}
	return p
}
