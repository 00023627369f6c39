package forms

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage/inmemory"
)

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

func postRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "small.gif")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPostForm_ValidWithGroupAndImage(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()
	group, err := store.CreateGroup(ctx, &domain.Group{Title: "Тестовая группа", Slug: "test-slug"})
	require.NoError(t, err)

	f, err := ParsePostForm(postRequest(t, map[string]string{
		"text":  "  Тестовый текст  ",
		"group": "1",
	}, smallGIF))
	require.NoError(t, err)
	require.NoError(t, f.Validate(ctx, store))

	assert.Equal(t, "Тестовый текст", f.Text)
	require.NotNil(t, f.GroupID)
	assert.Equal(t, group.ID, *f.GroupID)
	require.NotNil(t, f.Image)
	assert.Equal(t, ".gif", f.Image.Ext)

	post := &domain.Post{}
	f.Apply(post, "posts/small.gif")
	assert.Equal(t, "Тестовый текст", post.Text)
	assert.Equal(t, "posts/small.gif", post.Image)
}

func TestPostForm_Errors(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()

	f, err := ParsePostForm(postRequest(t, map[string]string{
		"text":  "",
		"group": "42",
	}, []byte("not an image at all")))
	require.NoError(t, err)

	err = f.Validate(ctx, store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid))

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{msgRequired}, verr.Get("text"))
	assert.Equal(t, []string{msgBadGroup}, verr.Get("group"))
	assert.Equal(t, []string{msgBadImage}, verr.Get("image"))
}

func TestPostForm_URLEncodedWithoutGroup(t *testing.T) {
	f, err := ParsePostForm(formRequest(url.Values{"text": {"Без группы"}, "group": {""}}))
	require.NoError(t, err)
	require.NoError(t, f.Validate(context.Background(), inmemory.New()))
	assert.Nil(t, f.GroupID)
	assert.Nil(t, f.Image)
}

func TestPostForm_ApplyKeepsOrClearsImage(t *testing.T) {
	post := &domain.Post{Image: "posts/old.gif"}
	(&PostForm{Text: "a"}).Apply(post, "")
	assert.Equal(t, "posts/old.gif", post.Image)

	(&PostForm{Text: "b", ClearImage: true}).Apply(post, "")
	assert.Equal(t, "", post.Image)
}

func TestPostFormFrom(t *testing.T) {
	gid := uint(7)
	f := PostFormFrom(&domain.Post{Text: "Текст", GroupID: &gid})
	assert.Equal(t, "Текст", f.Text)
	assert.Equal(t, "7", f.Group)
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(smallGIF)
	require.NoError(t, err)
	assert.Equal(t, ".gif", img.Ext)

	// Заголовок GIF без данных - не картинка
	_, err = DecodeImage(smallGIF[:6])
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = DecodeImage([]byte("%PDF-1.4"))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestCommentForm(t *testing.T) {
	f, err := ParseCommentForm(formRequest(url.Values{"text": {"   "}}))
	require.NoError(t, err)
	err = f.Validate()
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{msgRequired}, verr.Get("text"))

	f, err = ParseCommentForm(formRequest(url.Values{"text": {"Комментарий"}}))
	require.NoError(t, err)
	assert.NoError(t, f.Validate())
}

func xena() *SignupForm {
	return &SignupForm{
		FirstName: "Xena",
		LastName:  "Warrior",
		Username:  "warrior_princess",
		Email:     "xena@example.com",
		Password1: "XenaFight1!",
		Password2: "XenaFight1!",
	}
}

func TestSignupForm_Valid(t *testing.T) {
	assert.NoError(t, xena().Validate())
}

func TestSignupForm_Passwords(t *testing.T) {
	cases := map[string]struct {
		password1, password2 string
		want                 string
	}{
		"mismatch": {"XenaFight1!", "XenaFight2!", msgPasswordMismatch},
		"short":    {"Xf1!", "Xf1!", msgPasswordShort},
		"numeric":  {"90817263545", "90817263545", msgPasswordNumeric},
		"common":   {"iloveyou", "iloveyou", msgPasswordCommon},
		"similar":  {"warrior_princes", "warrior_princes", msgPasswordSimilar},
		"long":     {strings.Repeat("Zq7!", 20), strings.Repeat("Zq7!", 20), msgPasswordLong},
		"cyrillic": {strings.Repeat("жЫ", 20), strings.Repeat("жЫ", 20), msgPasswordLong},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := xena()
			f.Password1, f.Password2 = tc.password1, tc.password2
			verr, ok := AsValidationError(f.Validate())
			require.True(t, ok)
			assert.Contains(t, verr.Get("password2"), tc.want)
		})
	}
}

func TestSignupForm_LongPasswordSkipsPolicy(t *testing.T) {
	f := xena()
	f.Password1 = strings.Repeat("warrior_princess", 4096)
	f.Password2 = f.Password1
	verr, ok := AsValidationError(f.Validate())
	require.True(t, ok)
	assert.Equal(t, []string{msgPasswordLong}, verr.Get("password1"))
	assert.Equal(t, []string{msgPasswordLong}, verr.Get("password2"))
}

func TestSimilar(t *testing.T) {
	assert.True(t, similar("warrior_princes", "warrior_princess"))
	assert.True(t, similar("Xena2024", "Xena", "xena2024@example.com"))
	assert.False(t, similar("XenaFight1!", "warrior_princess", "Xena", "Warrior", "xena@example.com"))
	assert.False(t, similar("anything", ""))
}

func TestSignupForm_Fields(t *testing.T) {
	f := xena()
	f.Username = "bad name!"
	f.Email = "not-an-email"
	verr, ok := AsValidationError(f.Validate())
	require.True(t, ok)
	assert.Equal(t, []string{msgUsername}, verr.Get("username"))
	assert.Equal(t, []string{msgEmail}, verr.Get("email"))

	f = xena()
	f.Username = ""
	f.Password2 = ""
	verr, ok = AsValidationError(f.Validate())
	require.True(t, ok)
	assert.Equal(t, []string{msgRequired}, verr.Get("username"))
	assert.Equal(t, []string{msgRequired}, verr.Get("password2"))
}

func TestParseSignupForm(t *testing.T) {
	f, err := ParseSignupForm(formRequest(url.Values{
		"first_name": {" Xena "},
		"username":   {"warrior_princess"},
		"password1":  {" spaced "},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Xena", f.FirstName)
	assert.Equal(t, "warrior_princess", f.Username)
	assert.Equal(t, " spaced ", f.Password1)
}

func TestLoginForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login/?next=/create/",
		strings.NewReader(url.Values{"username": {"xena"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseLoginForm(req)
	require.NoError(t, err)
	assert.Equal(t, "/create/", f.Next)

	verr, ok := AsValidationError(f.Validate())
	require.True(t, ok)
	assert.Equal(t, []string{msgRequired}, verr.Get("password"))
	assert.Nil(t, verr.Get("username"))
}

func TestFromConstraint(t *testing.T) {
	err := FromConstraint(errors.AlreadyExistsf("user"), "username", MsgUsernameTaken)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{MsgUsernameTaken}, verr.Get("username"))

	other := errors.New("boom")
	assert.Equal(t, other, FromConstraint(other, "username", MsgUsernameTaken))
}

func TestValidationError_Error(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())
	verr.Add("b", "second")
	verr.Add("a", "first")
	assert.Equal(t, "invalid form: a: first; b: second", verr.Error())

	var nilErr *ValidationError
	assert.Nil(t, nilErr.Get("a"))
}
